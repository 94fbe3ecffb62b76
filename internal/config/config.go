// Package config loads the sbsctl settings from YAML and SBS_* environment
// variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smartbattery-go/drivers/sbs"
	"smartbattery-go/drivers/smbus"
	"smartbattery-go/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. SBS_BUS_NAME.
const EnvPrefix = "SBS"

type Config struct {
	Bus     BusConfig     `mapstructure:"bus"`
	Battery BatteryConfig `mapstructure:"battery"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Poll    PollConfig    `mapstructure:"poll"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type BusConfig struct {
	// Name is the periph bus name or device path ("1", "/dev/i2c-1").
	Name           string        `mapstructure:"name"`
	SpeedHz        uint32        `mapstructure:"speed_hz"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PEC            bool          `mapstructure:"pec"`
	OwnAddress     uint8         `mapstructure:"own_address"`
	StrictBlockLen bool          `mapstructure:"strict_block_len"`
}

type BatteryConfig struct {
	Address uint8 `mapstructure:"address"`
}

// AuthConfig holds gauge keys. SHA-1 keys are 32 hex digits.
type AuthConfig struct {
	UnsealKey       string   `mapstructure:"unseal_key"`
	FullAccessKey   string   `mapstructure:"full_access_key"`
	UnsealWords     []uint16 `mapstructure:"unseal_words"`
	FullAccessWords []uint16 `mapstructure:"full_access_words"`
}

type PollConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	InfoInterval time.Duration `mapstructure:"info_interval"`
	Jitter       time.Duration `mapstructure:"jitter"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bus.name", "")
	v.SetDefault("bus.speed_hz", smbus.DefaultSpeed)
	v.SetDefault("bus.timeout", smbus.DefaultTimeout)
	v.SetDefault("bus.pec", false)
	v.SetDefault("bus.own_address", 0)
	v.SetDefault("bus.strict_block_len", false)

	v.SetDefault("battery.address", sbs.AddressDefault)

	v.SetDefault("auth.unseal_key", "")
	v.SetDefault("auth.full_access_key", "")
	v.SetDefault("auth.unseal_words", []uint16{0x0414, 0x3672})
	v.SetDefault("auth.full_access_words", []uint16{0xFFFF, 0xFFFF})

	v.SetDefault("poll.interval", "3s")
	v.SetDefault("poll.info_interval", "1m")
	v.SetDefault("poll.jitter", "250ms")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9105")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads path (optional) and applies defaults and environment
// overrides. A missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.SMBus().Validate(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	if err := (sbs.Config{Address: c.Battery.Address}).Validate(); err != nil {
		return fmt.Errorf("battery: %w", err)
	}
	for name, k := range map[string]string{"unseal_key": c.Auth.UnsealKey, "full_access_key": c.Auth.FullAccessKey} {
		if k == "" {
			continue
		}
		if _, err := ParseKey(k); err != nil {
			return fmt.Errorf("auth.%s: %w", name, err)
		}
	}
	for name, w := range map[string][]uint16{"unseal_words": c.Auth.UnsealWords, "full_access_words": c.Auth.FullAccessWords} {
		if len(w) != 0 && len(w) != 2 {
			return fmt.Errorf("auth.%s: want 2 words, got %d", name, len(w))
		}
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}
	return nil
}

// SMBus maps the bus section onto the primitive layer configuration.
func (c *Config) SMBus() smbus.Config {
	return smbus.Config{
		OwnAddress:     c.Bus.OwnAddress,
		Speed:          c.Bus.SpeedHz,
		Timeout:        c.Bus.Timeout,
		PEC:            c.Bus.PEC,
		StrictBlockLen: c.Bus.StrictBlockLen,
	}
}

// ParseKey decodes a 128-bit key written as hex. Spaces, colons and a 0x
// prefix are ignored.
func ParseKey(s string) ([16]byte, error) {
	var k [16]byte
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	s = strings.NewReplacer(" ", "", ":", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, err
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("key is %d bytes, want %d", len(b), len(k))
	}
	copy(k[:], b)
	return k, nil
}

// Words returns w as a two-word key.
func Words(w []uint16) ([2]uint16, error) {
	if len(w) != 2 {
		return [2]uint16{}, fmt.Errorf("want 2 key words, got %d", len(w))
	}
	return [2]uint16{w[0], w[1]}, nil
}

// LogSettings returns the logger settings for output on stderr.
func (c *Config) LogSettings() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format, Output: os.Stderr}
}
