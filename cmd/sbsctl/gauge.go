package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"smartbattery-go/drivers/bq"
	"smartbattery-go/drivers/sbs"
	"smartbattery-go/internal/config"
)

func (a *app) withGauge(fn func(*bq.Gauge) error) error {
	return a.withBattery(func(bat *sbs.Battery) error {
		return fn(bq.New(bat))
	})
}

func newMACCmd(a *app) *cobra.Command {
	var block bool
	c := &cobra.Command{
		Use:   "mac <sub-command>",
		Short: "Issue a ManufacturerAccess sub-command and dump the reply",
		Long: `Write a 16-bit sub-command (hex) through ManufacturerAccess and print
the ManufacturerData block the gauge returns. --block uses
ManufacturerBlockAccess instead.`,
		Example: `  sbsctl mac 0x0002
  sbsctl mac 54 --block`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := parseSub(args[0])
			if err != nil {
				return err
			}
			return a.withGauge(func(g *bq.Gauge) error {
				call := g.ManufacturerCommand
				if block {
					call = g.BlockCommand
				}
				reply, err := call(sub)
				if err != nil {
					return a.fail("mac", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(reply))
				return nil
			})
		},
	}
	c.Flags().BoolVar(&block, "block", false, "use ManufacturerBlockAccess")
	return c
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the gauge security state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withGauge(func(g *bq.Gauge) error {
				st, err := g.SecurityState()
				if err != nil {
					return a.fail("status", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
}

// newAccessCmd builds unseal and full-access. Both use the SHA-1 handshake
// when --sha1 is set and the two-word key otherwise.
func newAccessCmd(a *app, use string, target bq.State) *cobra.Command {
	var sha, block bool
	c := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Move the gauge to the %s state", target),
		Long: fmt.Sprintf(`Move the gauge to the %[1]s state and confirm it through
OperationStatus.

Keys come from the auth section of the config: the 32-digit hex SHA-1 key
with --sha1, the two 16-bit words otherwise.`, target),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withGauge(func(g *bq.Gauge) error {
				var err error
				if sha {
					var key [16]byte
					if key, err = a.sha1Key(target); err != nil {
						return err
					}
					if block {
						err = g.BlockAccessSHA1(target, key)
					} else {
						err = g.AccessSHA1(target, key)
					}
				} else {
					var words [2]uint16
					if words, err = a.keyWords(target); err != nil {
						return err
					}
					if block {
						err = g.BlockAccessKey(target, words)
					} else {
						err = g.AccessKey(target, words)
					}
				}
				if err != nil {
					return a.fail(use, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), target)
				return nil
			})
		},
	}
	c.Flags().BoolVar(&sha, "sha1", false, "authenticate with the SHA-1 challenge")
	c.Flags().BoolVar(&block, "block", false, "use ManufacturerBlockAccess")
	return c
}

func (a *app) sha1Key(target bq.State) ([16]byte, error) {
	s := a.cfg.Auth.UnsealKey
	if target == bq.FullAccess {
		s = a.cfg.Auth.FullAccessKey
	}
	if s == "" {
		return [16]byte{}, errors.New("no SHA-1 key configured for " + target.String())
	}
	return config.ParseKey(s)
}

func (a *app) keyWords(target bq.State) ([2]uint16, error) {
	if target == bq.FullAccess {
		if len(a.cfg.Auth.FullAccessWords) == 0 {
			return bq.DefaultFullAccessKey, nil
		}
		return config.Words(a.cfg.Auth.FullAccessWords)
	}
	if len(a.cfg.Auth.UnsealWords) == 0 {
		return bq.DefaultUnsealKey, nil
	}
	return config.Words(a.cfg.Auth.UnsealWords)
}

func newSealCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seal",
		Short: "Seal the gauge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withGauge(func(g *bq.Gauge) error {
				if err := g.Seal(); err != nil {
					return a.fail("seal", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), bq.Sealed)
				return nil
			})
		},
	}
}
