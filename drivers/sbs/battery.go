package sbs

import (
	"errors"

	"go.uber.org/zap"

	"smartbattery-go/drivers/smbus"
)

// Driver configuration.
type Config struct {
	Address uint8
	Logger  *zap.Logger // optional
}

func DefaultConfig() Config {
	return Config{Address: AddressDefault}
}

func (c Config) Validate() error {
	if c.Address == 0 || c.Address > 0x7F {
		return errors.New("Address must be a non-zero 7-bit address (use AddressDefault)")
	}
	return nil
}

// Battery is one smart battery on an SMBus handle. The handle may be shared
// with other devices; multi-frame sequences are not serialised here.
type Battery struct {
	bus  *smbus.Bus
	addr uint8
	log  *zap.Logger

	info Info
}

// New binds a battery at cfg.Address to bus.
func New(bus *smbus.Bus, cfg Config) (*Battery, error) {
	if bus == nil {
		return nil, errors.New("nil bus")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Battery{
		bus:  bus,
		addr: cfg.Address,
		log:  log.Named("sbs").With(zap.Uint8("addr", cfg.Address)),
	}, nil
}

func (b *Battery) Address() uint8      { return b.addr }
func (b *Battery) Bus() *smbus.Bus     { return b.bus }
func (b *Battery) Logger() *zap.Logger { return b.log }

// Info returns the record filled by the last ReadInfo.
func (b *Battery) Info() Info { return b.info }
