package hostbus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"

	"smartbattery-go/drivers/smbus"
	"smartbattery-go/errcode"
)

// clocked records the speed set on a playback bus.
type clocked struct {
	*i2ctest.Playback
	speed physic.Frequency
}

func (c *clocked) SetSpeed(f physic.Frequency) error {
	c.speed = f
	return nil
}

func TestWrapCarriesTransactions(t *testing.T) {
	pb := &clocked{Playback: &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x0B, W: []byte{0x09}, R: []byte{0x20, 0x4E}},
		},
	}}
	hb := Wrap(pb)

	bus, err := smbus.Open(hb, smbus.Config{Speed: 400_000})
	require.NoError(t, err)
	v, err := bus.ReadWord(0x0B, 0x09)
	require.NoError(t, err)
	assert.Equal(t, uint16(20000), v)
	assert.Equal(t, 400*physic.KiloHertz, pb.speed)
	require.NoError(t, bus.Close())
}

func TestConfigureBusIgnoresZeroSpeed(t *testing.T) {
	pb := &clocked{Playback: &i2ctest.Playback{}}
	require.NoError(t, Wrap(pb).ConfigureBus(0, time.Second))
	assert.Equal(t, physic.Frequency(0), pb.speed)
}

func TestNormalise(t *testing.T) {
	assert.Equal(t, "1", normalise("/dev/i2c-1"))
	assert.Equal(t, "I2C1", normalise("I2C1"))
}

// emptyTx behaves like periph's sysfs adapter: a Tx with no buffers returns
// nil without touching the wire. Only addr answers.
type emptyTx struct {
	addr uint16
	ops  []i2ctest.IO
}

func (e *emptyTx) Tx(addr uint16, w, r []byte) error {
	if len(w) == 0 && len(r) == 0 {
		return nil
	}
	e.ops = append(e.ops, i2ctest.IO{Addr: addr, W: append([]byte(nil), w...), R: append([]byte(nil), r...)})
	if addr != e.addr {
		return errors.New("sysfs-i2c: remote I/O error")
	}
	return nil
}

func (e *emptyTx) SetSpeed(physic.Frequency) error { return nil }
func (e *emptyTx) String() string                  { return "emptyTx" }
func (e *emptyTx) Close() error                    { return nil }

func TestQuickCommandNeverReportsPhantomDevices(t *testing.T) {
	fake := &emptyTx{addr: 0x0B}
	bus, err := smbus.Open(Wrap(fake), smbus.DefaultConfig())
	require.NoError(t, err)

	// A write quick would be an empty Tx that always "succeeds".
	err = bus.QuickCommand(0x0C, false)
	require.Error(t, err)
	assert.Equal(t, errcode.Fail, errcode.Of(err))
	assert.Empty(t, fake.ops)

	require.NoError(t, bus.QuickCommand(0x0B, true))
	assert.Error(t, bus.QuickCommand(0x0C, true))
	require.Len(t, fake.ops, 2)
	for _, op := range fake.ops {
		assert.Empty(t, op.W)
		assert.Len(t, op.R, 1)
	}
}
