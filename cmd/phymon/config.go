package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soypat/ethphy/dp83826"
	"github.com/soypat/ethphy/internal"
	"github.com/soypat/ethphy/phy"
)

const (
	backendLinux = "linux"
	backendGPIO  = "gpio"
	backendSim   = "sim"
)

// autoAddr asks the backend for the PHY address. Only the linux backend
// knows it; others fall back to dp83826.DefaultPHYAddr.
const autoAddr = -1

// Config is the phymon configuration file.
type Config struct {
	// Backend is one of linux, gpio or sim.
	Backend string `yaml:"backend"`
	// Interface is the network interface whose MDIO bus the linux backend uses.
	Interface string `yaml:"interface"`
	PHYAddr   int    `yaml:"phy_addr"`
	// InterruptPin names the GPIO wired to the PHY INT pin. Empty selects polling.
	InterruptPin string     `yaml:"interrupt_pin"`
	GPIO         GPIOConfig `yaml:"gpio"`
	Sim          SimConfig  `yaml:"sim"`
	TickInterval string     `yaml:"tick_interval"`
	ResetTimeout string     `yaml:"reset_timeout"`
	// Advertise lists link modes to advertise, i.e: ["100M-F", "10M-F"].
	// Empty keeps the PHY's power on advertisement.
	Advertise []string `yaml:"advertise"`
	Pause     bool     `yaml:"pause"`
	LogLevel  string   `yaml:"log_level"`
}

// GPIOConfig names the pins of a bitbanged MDIO bus, as known to periph's gpioreg.
type GPIOConfig struct {
	MDC        string `yaml:"mdc"`
	MDIO       string `yaml:"mdio"`
	HalfPeriod string `yaml:"half_period"`
}

// SimConfig sets up the simulated PHY.
type SimConfig struct {
	// Link is the wire state, "down" or a link mode such as "100M-F".
	Link       string `yaml:"link"`
	ResetDelay int    `yaml:"reset_delay"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Backend:      backendLinux,
		Interface:    "eth0",
		PHYAddr:      autoAddr,
		TickInterval: "100ms",
		ResetTimeout: phy.DefaultResetTimeout.String(),
		LogLevel:     "info",
		Sim:          SimConfig{Link: "100M-F"},
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors before any hardware is touched.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case backendLinux:
		if c.Interface == "" {
			errs = append(errs, errors.New("linux backend requires interface"))
		}
	case backendGPIO:
		if c.GPIO.MDC == "" || c.GPIO.MDIO == "" {
			errs = append(errs, errors.New("gpio backend requires gpio.mdc and gpio.mdio"))
		}
	case backendSim:
		if _, err := c.simLink(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend %q (valid: linux, gpio, sim)", c.Backend))
	}
	if c.PHYAddr < autoAddr || c.PHYAddr > 255 {
		errs = append(errs, fmt.Errorf("phy_addr %d out of range", c.PHYAddr))
	}
	for _, d := range []struct{ name, val string }{
		{"tick_interval", c.TickInterval},
		{"reset_timeout", c.ResetTimeout},
		{"gpio.half_period", c.GPIO.HalfPeriod},
	} {
		if d.val == "" {
			continue
		}
		if v, err := time.ParseDuration(d.val); err != nil || v < 0 {
			errs = append(errs, fmt.Errorf("invalid %s %q", d.name, d.val))
		}
	}
	if _, err := c.Advertisement(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GetTickInterval returns the link poll interval. Zero selects the nic default.
func (c *Config) GetTickInterval() time.Duration { return parseDuration(c.TickInterval) }

// GetResetTimeout returns the reset timeout. Zero selects the driver default.
func (c *Config) GetResetTimeout() time.Duration { return parseDuration(c.ResetTimeout) }

func (c *Config) GetHalfPeriod() time.Duration { return parseDuration(c.GPIO.HalfPeriod) }

func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// Advertisement builds the ANAR value to write at init, or zero if none is configured.
func (c *Config) Advertisement() (phy.ANAR, error) {
	if len(c.Advertise) == 0 {
		return 0, nil
	}
	ad := phy.NewANAR()
	for _, s := range c.Advertise {
		lm, err := phy.ParseLinkMode(s)
		if err != nil || lm.ANAR() == 0 {
			return 0, fmt.Errorf("cannot advertise link mode %q", s)
		}
		ad |= lm.ANAR()
	}
	return ad.WithPause(c.Pause, false), nil
}

// Level parses LogLevel. "trace" enables register level tracing.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "trace":
		return internal.LevelTrace, nil
	case "", "info":
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.LogLevel))
	if err != nil {
		return 0, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return lvl, nil
}

// phyAddr resolves the configured address, falling back to def when automatic.
func (c *Config) phyAddr(def uint8) uint8 {
	if c.PHYAddr == autoAddr {
		return def
	}
	return uint8(c.PHYAddr)
}

func (c *Config) simLink() (phy.LinkMode, error) {
	if c.Sim.Link == "" || c.Sim.Link == phy.LinkDown.String() {
		return phy.LinkDown, nil
	}
	lm, err := phy.ParseLinkMode(c.Sim.Link)
	if err != nil || lm.SpeedMbps() > 100 || lm == phy.Link100T4 {
		return phy.LinkDown, fmt.Errorf("invalid sim.link %q", c.Sim.Link)
	}
	return lm, nil
}

func (c *Config) driverConfig(log *slog.Logger) (dp83826.Config, error) {
	ad, err := c.Advertisement()
	return dp83826.Config{
		ResetTimeout:  c.GetResetTimeout(),
		Advertisement: ad,
		Logger:        log,
	}, err
}
