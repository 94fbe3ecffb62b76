package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"smartbattery-go/drivers/sbs"
	"smartbattery-go/errcode"
)

// First and last addresses scanned; the rest are reserved.
const (
	scanFirst = 0x08
	scanLast  = 0x77
)

func newCommandsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List the standard SBS commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([][]string, 0, len(sbs.Commands()))
			for _, c := range sbs.Commands() {
				d, _ := sbs.Lookup(c)
				rows = append(rows, []string{d.Name, accessName(d.Access)})
			}
			printTable(cmd.OutOrStdout(), []string{"Command", "Access"}, rows)
			return nil
		},
	}
}

func accessName(acc sbs.Access) string {
	switch v := acc.(type) {
	case sbs.Read:
		return fmt.Sprintf("read 0x%02x (%s)", v.Reg, v.Proto)
	case sbs.Write:
		return fmt.Sprintf("write 0x%02x (%s)", v.Reg, v.Proto)
	case sbs.ReadWrite:
		return fmt.Sprintf("read/write 0x%02x (%s)", v.Read.Reg, v.Read.Proto)
	case sbs.Exchange:
		return fmt.Sprintf("exchange 0x%02x>0x%02x (%s)", v.WriteReg, v.ReadReg, v.Proto)
	}
	return "?"
}

func newBusesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "buses",
		Short: "List the I2C adapters this host exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := a.buses()
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Find devices by sending a read quick command to every address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bus, err := a.openBus()
			if err != nil {
				return err
			}
			defer bus.Close()

			var found []string
			for addr := uint8(scanFirst); addr <= scanLast; addr++ {
				// Read quick: a write quick cannot reach the wire through i2c-dev.
				if err := bus.QuickCommand(addr, true); err == nil {
					found = append(found, fmt.Sprintf("0x%02x", addr))
				}
			}
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no devices found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(found, " "))
			return nil
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Read the battery identity and state summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withBattery(func(bat *sbs.Battery) error {
				info, err := bat.ReadInfo()
				printTable(cmd.OutOrStdout(), []string{"Field", "Value"}, infoRows(info))
				if err != nil {
					return a.fail("info", err)
				}
				return nil
			})
		},
	}
}

func newReadCmd(a *app) *cobra.Command {
	var all bool
	c := &cobra.Command{
		Use:   "read [command...]",
		Short: "Read SBS commands by name",
		Example: `  sbsctl read Voltage Current
  sbsctl read relative_state_of_charge
  sbsctl read --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmds, err := selectReadable(args, all)
			if err != nil {
				return err
			}
			return a.withBattery(func(bat *sbs.Battery) error {
				rows := make([][]string, 0, len(cmds))
				var failed error
				for _, c := range cmds {
					d, _ := sbs.Lookup(c)
					out := sbs.NewOutput(d.Result)
					if err := bat.RunCommand(c, nil, out); err != nil {
						rows = append(rows, []string{d.Name, "error: " + string(errcode.Of(err))})
						failed = errors.Join(failed, err)
						continue
					}
					rows = append(rows, []string{d.Name, formatOutput(out)})
				}
				printTable(cmd.OutOrStdout(), []string{"Command", "Value"}, rows)
				if failed != nil {
					return a.fail("read", failed)
				}
				return nil
			})
		},
	}
	c.Flags().BoolVar(&all, "all", false, "read every command that takes no input")
	return c
}

// selectReadable resolves names to commands that can be read without input.
func selectReadable(names []string, all bool) ([]sbs.Command, error) {
	if all {
		var out []sbs.Command
		for _, c := range sbs.Commands() {
			if readable(c) {
				out = append(out, c)
			}
		}
		return out, nil
	}
	if len(names) == 0 {
		return nil, errors.New("name at least one command or pass --all")
	}
	out := make([]sbs.Command, 0, len(names))
	for _, n := range names {
		c, ok := sbs.ParseCommand(n)
		if !ok {
			return nil, fmt.Errorf("unknown command %q (see sbsctl commands)", n)
		}
		if !readable(c) {
			return nil, fmt.Errorf("%s needs an input, use sbsctl mac", c)
		}
		out = append(out, c)
	}
	return out, nil
}

func readable(c sbs.Command) bool {
	d, _ := sbs.Lookup(c)
	switch d.Access.(type) {
	case sbs.Read, sbs.ReadWrite:
		return true
	}
	return false
}

func newWriteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "write <command> <value>",
		Short: "Write a word to a read/write SBS command",
		Long: `Write a 16-bit value to a read/write command and print the value read
back. Negative values are accepted for signed commands such as AtRate;
prefixes 0x, 0o and 0b select the base.`,
		Example: `  sbsctl write RemainingCapacityAlarm 300
  sbsctl write BatteryMode 0x6001
  sbsctl write AtRate -- -250`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok := sbs.ParseCommand(args[0])
			if !ok {
				return fmt.Errorf("unknown command %q (see sbsctl commands)", args[0])
			}
			d, _ := sbs.Lookup(c)
			if _, ok := d.Access.(sbs.ReadWrite); !ok {
				return fmt.Errorf("%s is not writable", c)
			}
			v, err := parseWord(args[1])
			if err != nil {
				return err
			}
			return a.withBattery(func(bat *sbs.Battery) error {
				out := sbs.NewOutput(d.Result)
				if err := bat.RunCommand(c, []byte{byte(v), byte(v >> 8)}, out); err != nil {
					return a.fail("write", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", d.Name, formatOutput(out))
				return nil
			})
		},
	}
}

// parseWord accepts anything from -32768 to 65535.
func parseWord(s string) (uint16, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	if v < -0x8000 || v > 0xFFFF {
		return 0, fmt.Errorf("value %d does not fit in 16 bits", v)
	}
	return uint16(v), nil
}

// parseSub parses a 16-bit MAC sub-command, hex by default.
func parseSub(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid sub-command %q: %w", s, err)
	}
	return uint16(v), nil
}
