// Package config loads option-pricer settings from a YAML file with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/contactkeval/option-pricer/internal/pricing"
)

// PricingConfig controls valuation defaults.
type PricingConfig struct {
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	Model        string  `yaml:"model"`   // black_scholes | binomial
	Steps        int     `yaml:"steps"`   // lattice depth
	Workers      int     `yaml:"workers"` // 0 = GOMAXPROCS
}

// DataConfig selects and configures the market-data provider.
type DataConfig struct {
	Provider string `yaml:"provider"` // synthetic | local | massive
	Dir      string `yaml:"dir"`      // local provider directory
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Seed     int64  `yaml:"seed"` // synthetic provider seed
	Fallback string `yaml:"fallback"`
}

// ServerConfig represents REST server configuration.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ReportConfig represents report output configuration.
type ReportConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type Config struct {
	Pricing PricingConfig `yaml:"pricing"`
	Data    DataConfig    `yaml:"data"`
	Server  ServerConfig  `yaml:"server"`
	Report  ReportConfig  `yaml:"report"`
	Logging LoggingConfig `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Pricing: PricingConfig{
			RiskFreeRate: 0.05,
			Model:        string(pricing.ModelBlackScholes),
			Steps:        pricing.DefaultSteps,
		},
		Data: DataConfig{
			Provider: "synthetic",
			BaseURL:  "https://api.massive.com",
			Seed:     1,
		},
		Server:  ServerConfig{Addr: ":8080"},
		Report:  ReportConfig{Dir: "./out"},
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
	}
}

// Load reads path on top of the defaults, then applies environment
// overrides. An empty path or a missing file leaves the defaults in place;
// a file that cannot be parsed is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Pricing.RiskFreeRate = getEnvFloat("OPTION_PRICER_RISK_FREE_RATE", cfg.Pricing.RiskFreeRate)
	cfg.Pricing.Model = getEnv("OPTION_PRICER_MODEL", cfg.Pricing.Model)
	cfg.Pricing.Steps = getEnvInt("OPTION_PRICER_STEPS", cfg.Pricing.Steps)
	cfg.Pricing.Workers = getEnvInt("OPTION_PRICER_WORKERS", cfg.Pricing.Workers)

	cfg.Data.Provider = getEnv("OPTION_PRICER_PROVIDER", cfg.Data.Provider)
	cfg.Data.Dir = getEnv("OPTION_PRICER_DATA_DIR", cfg.Data.Dir)
	cfg.Data.BaseURL = getEnv("OPTION_PRICER_BASE_URL", cfg.Data.BaseURL)
	cfg.Data.APIKey = getEnv("POLYGON_API_KEY", cfg.Data.APIKey)
	cfg.Data.APIKey = getEnv("MASSIVE_API_KEY", cfg.Data.APIKey)

	cfg.Server.Addr = getEnv("OPTION_PRICER_ADDR", cfg.Server.Addr)
	cfg.Report.Dir = getEnv("OPTION_PRICER_REPORT_DIR", cfg.Report.Dir)
	cfg.Logging.Level = getEnv("OPTION_PRICER_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.File = getEnv("OPTION_PRICER_LOG_FILE", cfg.Logging.File)
}

// Validate rejects configurations the pricer cannot run with.
func (c *Config) Validate() error {
	if _, err := pricing.ParseModel(c.Pricing.Model); err != nil {
		return fmt.Errorf("config: pricing.model: %w", err)
	}
	if c.Pricing.Steps < 1 {
		return fmt.Errorf("config: pricing.steps must be >= 1, got %d", c.Pricing.Steps)
	}
	if c.Pricing.Workers < 0 {
		return fmt.Errorf("config: pricing.workers must be >= 0, got %d", c.Pricing.Workers)
	}

	for _, p := range []string{c.Data.Provider, c.Data.Fallback} {
		switch strings.ToLower(p) {
		case "", "synthetic", "local", "massive":
		default:
			return fmt.Errorf("config: unknown data provider %q", p)
		}
	}
	if strings.EqualFold(c.Data.Provider, "") {
		return fmt.Errorf("config: data.provider is required")
	}
	if (strings.EqualFold(c.Data.Provider, "local") || strings.EqualFold(c.Data.Fallback, "local")) && c.Data.Dir == "" {
		return fmt.Errorf("config: data.dir is required for the local provider")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
