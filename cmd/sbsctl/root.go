package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"tinygo.org/x/drivers"

	"smartbattery-go/drivers/bq"
	"smartbattery-go/drivers/sbs"
	"smartbattery-go/drivers/smbus"
	"smartbattery-go/errcode"
	"smartbattery-go/internal/config"
	"smartbattery-go/internal/hostbus"
	"smartbattery-go/internal/logging"
	"smartbattery-go/internal/metrics"
)

// app carries what the commands share. Tests swap dial and sleep.
type app struct {
	cfgFile string
	busName string
	address uint8
	pec     bool

	cfg *config.Config
	log *zap.Logger
	out io.Writer

	dial     func(name string) (drivers.I2C, error)
	buses    func() ([]string, error)
	sleep    func(time.Duration)
	observer smbus.Observer
	metrics  *metrics.Metrics // set by poll
}

func newApp(out io.Writer) *app {
	return &app{
		out: out,
		dial: func(name string) (drivers.I2C, error) {
			b, err := hostbus.Open(name)
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		buses: hostbus.Names,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sbsctl",
		Short: "Smart battery (SBS) tool for SMBus hosts",
		Long: `sbsctl talks to SBS 1.1 smart batteries over a Linux I2C adapter.

It reads the standard battery registers, aggregates the identity record,
runs the bq-series seal/unseal handshakes and can poll telemetry into
Prometheus.

Settings come from --config (YAML) and SBS_* environment variables,
e.g. SBS_BUS_NAME=/dev/i2c-1 SBS_BUS_PEC=true.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetOut(a.out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	pf.StringVar(&a.busName, "bus", "", "I2C adapter, overrides bus.name")
	pf.Uint8Var(&a.address, "address", sbs.AddressDefault, "battery 7-bit address, overrides battery.address")
	pf.BoolVar(&a.pec, "pec", false, "enable packet error checking, overrides bus.pec")

	root.AddCommand(
		newVersionCmd(a),
		newCommandsCmd(a),
		newBusesCmd(a),
		newScanCmd(a),
		newInfoCmd(a),
		newReadCmd(a),
		newWriteCmd(a),
		newMACCmd(a),
		newStatusCmd(a),
		newAccessCmd(a, "unseal", bq.Unsealed),
		newAccessCmd(a, "full-access", bq.FullAccess),
		newSealCmd(a),
		newPollCmd(a),
	)
	return root
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("bus") {
		cfg.Bus.Name = a.busName
	}
	if flags.Changed("address") {
		cfg.Battery.Address = a.address
	}
	if flags.Changed("pec") {
		cfg.Bus.PEC = a.pec
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if a.log == nil {
		if a.log, err = logging.New(cfg.LogSettings()); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) openBus() (*smbus.Bus, error) {
	t, err := a.dial(a.cfg.Bus.Name)
	if err != nil {
		return nil, err
	}
	sc := a.cfg.SMBus()
	sc.Logger = a.log
	sc.Sleep = a.sleep
	sc.Observer = a.observer
	bus, err := smbus.Open(t, sc)
	if err != nil {
		if c, ok := t.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return bus, nil
}

// openBattery opens the bus and binds the configured battery. The caller
// closes the returned bus.
func (a *app) openBattery() (*sbs.Battery, *smbus.Bus, error) {
	bus, err := a.openBus()
	if err != nil {
		return nil, nil, err
	}
	bat, err := sbs.New(bus, sbs.Config{Address: a.cfg.Battery.Address, Logger: a.log})
	if err != nil {
		_ = bus.Close()
		return nil, nil, err
	}
	return bat, bus, nil
}

// withBattery runs fn against a freshly opened battery.
func (a *app) withBattery(fn func(*sbs.Battery) error) error {
	bat, bus, err := a.openBattery()
	if err != nil {
		return err
	}
	defer bus.Close()
	return fn(bat)
}

// fail logs the error category and turns err into the command error.
func (a *app) fail(what string, err error) error {
	a.log.Error(what+" failed", zap.String("code", string(errcode.Of(err))), zap.Error(err))
	return fmt.Errorf("%s: %w", what, err)
}
