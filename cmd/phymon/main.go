// Command phymon brings up a DP83826 Ethernet PHY and reports its link state.
//
// The management bus is reached through a Linux network interface (MII ioctls),
// two bitbanged GPIOs, or a simulated PHY for trying things out:
//
//	phymon --backend sim monitor
//	phymon --interface eth1 dump
//	phymon --config board.yaml status --timeout 5s
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	cfg        *Config
	log        *slog.Logger

	// flag overrides.
	backend  string
	ifname   string
	phyAddr  int
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "phymon",
		Short:         "DP83826 Ethernet PHY monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "phymon.yaml", "YAML configuration file")
	pf.StringVar(&a.backend, "backend", "", "management bus backend: linux, gpio or sim")
	pf.StringVarP(&a.ifname, "interface", "i", "", "network interface for the linux backend")
	pf.IntVar(&a.phyAddr, "phy-addr", autoAddr, "PHY address on the management bus (-1 for automatic)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn or error")

	root.AddCommand(
		newMonitorCmd(a),
		newDumpCmd(a),
		newScanCmd(a),
		newStatusCmd(a),
	)
	return root
}

// load reads the configuration file and applies flags given on the command line.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = a.backend
	}
	if flags.Changed("interface") {
		cfg.Interface = a.ifname
	}
	if flags.Changed("phy-addr") {
		cfg.PHYAddr = a.phyAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	lvl, _ := cfg.Level()
	a.cfg = cfg
	a.log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "phymon:", err)
		os.Exit(1)
	}
}
