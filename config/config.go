// Package config parses the loyalty service's YAML configuration.
//
// The file carries deployment settings (port, database path) and the
// business parameters that are data, not code: the minimum redemption,
// the earn rate, the credit expiry window, and the tier threshold table.
// Every field has a coded default so the service runs with no file at all.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Top-g99/luxe-staycations-sub007/loyalty"
)

// Server holds HTTP settings.
type Server struct {
	Port int `yaml:"port"`
}

// Database holds storage settings.
type Database struct {
	Path string `yaml:"path"`
}

// TierEntry is one row of the configured tier table.
type TierEntry struct {
	Name      string   `yaml:"name"`
	Threshold int64    `yaml:"threshold"`
	Benefits  []string `yaml:"benefits"`
}

// Loyalty holds the business parameters.
type Loyalty struct {
	MinimumRedemption int64       `yaml:"minimum_redemption"`
	SignupBonus       int64       `yaml:"signup_bonus"`
	EarnRate          string      `yaml:"earn_rate"` // jewels per currency unit, decimal string
	ExpiryDays        int         `yaml:"expiry_days"`
	Tiers             []TierEntry `yaml:"tiers"`
}

// Config is the root configuration document.
type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Loyalty  Loyalty  `yaml:"loyalty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and parses a YAML configuration file, applying defaults for
// omitted fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	c.applyDefaults()
	if _, err := c.Rules(); err != nil {
		return nil, err
	}
	if _, err := c.TierPolicy(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "loyalty.db"
	}

	defaults := loyalty.DefaultRules()
	if c.Loyalty.MinimumRedemption == 0 {
		c.Loyalty.MinimumRedemption = defaults.MinimumRedemption
	}
	if c.Loyalty.SignupBonus == 0 {
		c.Loyalty.SignupBonus = defaults.SignupBonus
	}
	if c.Loyalty.EarnRate == "" {
		c.Loyalty.EarnRate = defaults.EarnRate.String()
	}
	if c.Loyalty.ExpiryDays == 0 {
		c.Loyalty.ExpiryDays = int(defaults.EarnExpiry / (24 * time.Hour))
	}
}

// Rules converts the configured parameters into engine rules.
func (c *Config) Rules() (loyalty.Rules, error) {
	rate, err := decimal.NewFromString(c.Loyalty.EarnRate)
	if err != nil {
		return loyalty.Rules{}, fmt.Errorf("invalid earn_rate %q: %w", c.Loyalty.EarnRate, err)
	}
	if c.Loyalty.MinimumRedemption <= 0 {
		return loyalty.Rules{}, fmt.Errorf("minimum_redemption must be positive, got %d", c.Loyalty.MinimumRedemption)
	}
	return loyalty.Rules{
		MinimumRedemption: c.Loyalty.MinimumRedemption,
		SignupBonus:       c.Loyalty.SignupBonus,
		EarnRate:          rate,
		EarnExpiry:        time.Duration(c.Loyalty.ExpiryDays) * 24 * time.Hour,
	}, nil
}

// TierPolicy converts the configured tier table into a policy. An empty
// table means the standard one.
func (c *Config) TierPolicy() (*loyalty.TierPolicy, error) {
	if len(c.Loyalty.Tiers) == 0 {
		return loyalty.DefaultTierPolicy(), nil
	}

	levels := make([]loyalty.TierLevel, len(c.Loyalty.Tiers))
	for i, t := range c.Loyalty.Tiers {
		if t.Name == "" {
			return nil, fmt.Errorf("tier %d: name is required", i)
		}
		levels[i] = loyalty.TierLevel{
			Tier:      loyalty.Tier(t.Name),
			Threshold: t.Threshold,
			Benefits:  t.Benefits,
		}
	}
	return loyalty.NewTierPolicy(levels)
}
