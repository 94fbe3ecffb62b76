package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartbattery-go/drivers/sbs"
	"smartbattery-go/drivers/smbus"
	"smartbattery-go/drivers/smbus/smbustest"
	"smartbattery-go/errcode"
)

func TestObserverCountsEveryTransaction(t *testing.T) {
	m := New(prometheus.NewRegistry())

	sim := smbustest.New()
	dev := smbustest.NewDevice(sbs.AddressDefault, true)
	dev.SetWord(0x09, 12000)
	sim.Attach(sbs.AddressDefault, dev)
	bus, err := smbus.Open(sim, smbus.Config{PEC: true, Observer: m})
	require.NoError(t, err)

	_, err = bus.ReadWord(sbs.AddressDefault, 0x09)
	require.NoError(t, err)
	_, err = bus.ReadWord(sbs.AddressDefault, 0x09)
	require.NoError(t, err)
	dev.CorruptPEC(true)
	_, err = bus.ReadWord(sbs.AddressDefault, 0x09)
	require.Error(t, err)
	_, err = bus.ReadWord(0x0C, 0x09)
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TxTotal.WithLabelValues("read_word", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxTotal.WithLabelValues("read_word", "bad_crc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TxTotal.WithLabelValues("read_word", string(errcode.AddrWriteNack))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PECErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TxDuration))
}

func TestObserveInfo(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveInfo(sbs.Info{Voltage: 16200, RelativeSOC: 87, TemperatureK: 298.1, CycleCount: 3})

	assert.Equal(t, 16200.0, testutil.ToFloat64(m.Value.WithLabelValues("Voltage")))
	assert.Equal(t, 87.0, testutil.ToFloat64(m.Value.WithLabelValues("RelativeStateOfCharge")))
	assert.InDelta(t, 298.1, testutil.ToFloat64(m.Value.WithLabelValues("Temperature")), 1e-9)

	m.Set(sbs.Current, -1200)
	assert.Equal(t, -1200.0, testutil.ToFloat64(m.Value.WithLabelValues("Current")))
}

func TestPollAndSecurity(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.PollFailed("telemetry", &errcode.E{C: errcode.Timeout})
	m.PollFailed("telemetry", errcode.Timeout)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PollErrors.WithLabelValues("telemetry", "timeout")))

	all := []string{"sealed", "unsealed", "full_access"}
	m.SetSecurity("unsealed", all)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Security.WithLabelValues("unsealed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Security.WithLabelValues("sealed")))
}
