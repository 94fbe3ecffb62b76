// Package smbus implements the SMBus 3.x transaction protocols on top of a
// plain I²C transport.
//
// Every primitive performs one complete bus transaction (start, address,
// command, payload, optional PEC, stop) and reports the outcome as an
// errcode-compatible error. Nothing is interpreted beyond framing, and nothing
// is retried.
//
// The transport is tinygo's drivers.I2C:
//
//	Tx(addr uint16, w, r []byte) error
//
// which MUST issue the write and the read within one transaction using a
// repeated start when both w and r are non-empty. periph.io's i2c.Bus and
// tinygo's machine.I2C both satisfy it.
package smbus

import (
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/drivers"

	"smartbattery-go/errcode"
)

// Bus speed limits (Hz).
const (
	DefaultSpeed = 100_000
	MaxSpeed     = 800_000
)

// MaxBlockLen is the largest payload a length-prefixed block can carry.
const MaxBlockLen = 255

// DefaultTimeout is applied when Config.Timeout is zero.
const DefaultTimeout = time.Second

// BlockTransport is implemented by transports able to read the SMBus count
// byte and then exactly count (+PEC) bytes within one transaction. Without it
// block reads clock a full-size frame and use the count byte to trim it.
type BlockTransport interface {
	drivers.I2C
	// TxBlock writes w, issues a repeated start, reads the count byte into
	// r[0] followed by count bytes (+1 when pec) into r[1:]. It returns the
	// number of bytes stored in r.
	TxBlock(addr uint16, w, r []byte, pec bool) (int, error)
}

// QuickTransport is implemented by transports that can emit an address-only
// frame with an explicit R/W bit.
type QuickTransport interface {
	Quick(addr uint16, read bool) error
}

// Configurer is implemented by transports whose clock and timeout can be set
// when the bus is opened.
type Configurer interface {
	ConfigureBus(speedHz uint32, timeout time.Duration) error
}

// Observer receives one callback per completed primitive. It must not block.
type Observer interface {
	ObserveTx(p Protocol, addr uint8, d time.Duration, err error)
}

// Config carries the per-bus addressing and timing settings.
type Config struct {
	// OwnAddress is the 7-bit address this host answers to (Host Notify).
	OwnAddress uint8
	// Speed is the SCL frequency in Hz. Zero selects DefaultSpeed.
	Speed uint32
	// Timeout is enforced by the transport. Zero selects DefaultTimeout.
	Timeout time.Duration
	// PEC appends/validates a CRC-8 packet error code on every frame.
	PEC bool
	// StrictBlockLen turns an oversize block count into errcode.Overflow
	// instead of silently truncating to the destination buffer.
	StrictBlockLen bool

	// Sleep realises inter-call delays. Defaults to time.Sleep.
	Sleep func(time.Duration)
	// Logger receives debug output for failed transactions. Optional.
	Logger *zap.Logger
	// Observer is notified after each transaction. Optional.
	Observer Observer
}

// DefaultConfig returns a 100 kHz, 1 s timeout, PEC-off configuration.
func DefaultConfig() Config {
	return Config{
		Speed:   DefaultSpeed,
		Timeout: DefaultTimeout,
	}
}

// Validate checks the static fields.
func (c Config) Validate() error {
	if c.Speed > MaxSpeed {
		return &errcode.E{C: errcode.InvalidArg, Op: "open", Msg: "speed exceeds 800 kHz"}
	}
	if c.OwnAddress > 0x7F {
		return &errcode.E{C: errcode.InvalidArg, Op: "open", Msg: "own address is not 7-bit"}
	}
	if c.Timeout < 0 {
		return &errcode.E{C: errcode.InvalidArg, Op: "open", Msg: "negative timeout"}
	}
	return nil
}

// Bus is one SMBus handle. Each primitive holds the handle lock for the
// duration of its frame; callers sharing a physical bus between drivers must
// still serialise multi-frame sequences themselves.
type Bus struct {
	mu     sync.Mutex
	t      drivers.I2C
	cfg    Config
	log    *zap.Logger
	closed bool
}

// Open binds a transport to a new handle. The transport is configured when
// it implements Configurer.
func Open(t drivers.I2C, cfg Config) (*Bus, error) {
	if t == nil {
		return nil, &errcode.E{C: errcode.InvalidArg, Op: "open", Msg: "nil transport"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Speed == 0 {
		cfg.Speed = DefaultSpeed
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if c, ok := t.(Configurer); ok {
		if err := c.ConfigureBus(cfg.Speed, cfg.Timeout); err != nil {
			return nil, errcode.Wrap(errcode.MapDriverErr(err), "open", err)
		}
	}
	return &Bus{t: t, cfg: cfg, log: log.Named("smbus")}, nil
}

// Close releases the handle and closes the transport when it is an io.Closer.
// Closing twice is a no-op.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if c, ok := b.t.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return errcode.Wrap(errcode.Fail, "close", err)
		}
	}
	return nil
}

// Info returns the effective configuration.
func (b *Bus) Info() Config { return b.cfg }

// PEC reports whether packet error checking is enabled.
func (b *Bus) PEC() bool { return b.cfg.PEC }

// Delay blocks the caller for d using the configured sleeper.
func (b *Bus) Delay(d time.Duration) {
	if d > 0 {
		b.cfg.Sleep(d)
	}
}

// tx runs one transport exchange under the handle lock and reports it.
func (b *Bus) tx(p Protocol, addr uint8, fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return &errcode.E{C: errcode.InvalidArg, Op: p.String(), Msg: "bus closed"}
	}
	if err := checkAddr(p, addr); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	if b.cfg.Observer != nil {
		b.cfg.Observer.ObserveTx(p, addr, time.Since(start), err)
	}
	if err != nil {
		b.log.Debug("transaction failed",
			zap.Stringer("protocol", p),
			zap.Uint8("addr", addr),
			zap.Error(err))
	}
	return err
}

// transportErr converts a transport failure into a coded error.
func transportErr(p Protocol, err error) error {
	if err == nil {
		return nil
	}
	return errcode.Wrap(errcode.MapDriverErr(err), p.String(), err)
}

func invalid(p Protocol, msg string) error {
	return &errcode.E{C: errcode.InvalidArg, Op: p.String(), Msg: msg}
}

func checkAddr(p Protocol, addr uint8) error {
	if addr > 0x7F {
		return invalid(p, "address is not 7-bit")
	}
	return nil
}
