package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/soypat/ethphy/dp83826"
	"github.com/soypat/ethphy/nic"
	"github.com/soypat/ethphy/phy"
)

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the 32 PHY registers without resetting the PHY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer b.Close()
			var iface nic.Interface
			if err := b.setup(&iface, a.cfg, a.log, nil); err != nil {
				return err
			}
			var regs [phy.NumRegisters]uint16
			if err := dp83826.ReadRegisters(&iface, &regs); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REG\tVALUE\tNAME")
			for i, v := range regs {
				fmt.Fprintf(w, "0x%02X\t0x%04X\t%s\n", i, v, dp83826.RegName(uint8(i)))
			}
			return w.Flush()
		},
	}
}

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List the PHY addresses that answer on the management bus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer b.Close()
			var found [32]uint8
			n, err := phy.FindClause22PHYs(b.bus, found[:])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, addr := range found[:n] {
				var dev phy.Device
				if err := dev.ConfigureAs22(b.bus, addr); err != nil {
					return err
				}
				id1, id2, err := dev.ID()
				if err != nil {
					return err
				}
				abilities, err := dev.Abilities()
				if err != nil {
					return err
				}
				var modes []string
				for _, lm := range abilities.Modes() {
					modes = append(modes, lm.String())
				}
				id := dp83826.ID{IDR1: id1, IDR2: id2}
				fmt.Fprintf(out, "addr=%d id=%04X:%04X model=%d rev=%d dp83826=%t modes=%s\n",
					addr, id1, id2, id.Model(), id.Revision(), id.IsDP83826(), strings.Join(modes, ","))
			}
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Wait for auto-negotiation and print the negotiated link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer b.Close()
			var dev phy.Device
			if err := dev.ConfigureAs22(b.bus, b.addr); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			out := cmd.OutOrStdout()
			up, err := dev.WaitForLink(ctx)
			if err != nil && ctx.Err() == nil {
				return err
			}
			if !up {
				fmt.Fprintln(out, "link down")
				return nil
			}
			lm, err := dev.NegotiatedLink()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "link up %s\n", lm)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to wait for the link")
	return cmd
}
