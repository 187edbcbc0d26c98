package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soypat/ethphy/nic"
)

func newMonitorCmd(a *app) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Reset the PHY and print link changes until interrupted",
		Long: `Resets and initializes the PHY, then services link events from the
interrupt pin (if configured) or by polling the status register.
Every link change event is printed, including repeated ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			return a.monitor(ctx, cmd)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func (a *app) monitor(ctx context.Context, cmd *cobra.Command) error {
	b, err := openBackend(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer b.Close()
	out := cmd.OutOrStdout()
	var iface nic.Interface
	err = b.setup(&iface, a.cfg, a.log, func(iface *nic.Interface, link nic.Link) {
		if link.Up {
			fmt.Fprintf(out, "%s link up %s %s\n", time.Now().Format(time.TimeOnly), link.Speed, link.Duplex)
		} else {
			fmt.Fprintf(out, "%s link down\n", time.Now().Format(time.TimeOnly))
		}
	})
	if err != nil {
		return err
	}
	if err := iface.Up(ctx); err != nil {
		return err
	}
	err = iface.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
