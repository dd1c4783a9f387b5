package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"grain-backend/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port               int      `mapstructure:"port"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string `mapstructure:"cors_allowed_headers"`
	} `mapstructure:"server"`

	Company struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"company"`

	Settlement struct {
		Formula string `mapstructure:"formula"`
	} `mapstructure:"settlement"`

	Export struct {
		TimeoutSeconds int     `mapstructure:"timeout_seconds"`
		PrintFallback  bool    `mapstructure:"print_fallback"`
		LockTTLSeconds int     `mapstructure:"lock_ttl_seconds"`
		RatePerSecond  float64 `mapstructure:"rate_per_second"`
		RateBurst      int     `mapstructure:"rate_burst"`
	} `mapstructure:"export"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Printer struct {
		URL            string `mapstructure:"url"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"printer"`

	Session struct {
		IdleMinutes   int    `mapstructure:"idle_minutes"`
		SweepSchedule string `mapstructure:"sweep_schedule"`
	} `mapstructure:"session"`

	Log struct {
		Development bool `mapstructure:"development"`
	} `mapstructure:"log"`
}

// Load reads configs/config.yaml (optional), .env (optional) and the environment
func Load() (*Config, error) {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile("configs/config.yaml")

	v.AutomaticEnv()
	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		log.Printf("[Config] No config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Content-Type"})
	v.SetDefault("company.name", "Sapna Trading Company")
	v.SetDefault("settlement.formula", string(models.FormulaPerQuintal))
	v.SetDefault("export.timeout_seconds", 30)
	v.SetDefault("export.print_fallback", true)
	v.SetDefault("export.lock_ttl_seconds", 60)
	v.SetDefault("export.rate_per_second", 2)
	v.SetDefault("export.rate_burst", 5)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("printer.timeout_seconds", 10)
	v.SetDefault("session.idle_minutes", 60)
	v.SetDefault("session.sweep_schedule", "*/5 * * * *")
}

func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Server.Port = n
		}
	}
	if name := os.Getenv("COMPANY_NAME"); name != "" {
		cfg.Company.Name = name
	}
	if formula := os.Getenv("SETTLEMENT_FORMULA"); formula != "" {
		cfg.Settlement.Formula = formula
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}
	if url := os.Getenv("PRINTER_URL"); url != "" {
		cfg.Printer.URL = url
	}
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	switch models.Formula(c.Settlement.Formula) {
	case models.FormulaPerQuintal, models.FormulaFlat:
	default:
		return fmt.Errorf("settlement.formula must be %q or %q, got %q",
			models.FormulaPerQuintal, models.FormulaFlat, c.Settlement.Formula)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

func (c *Config) ExportTimeout() time.Duration {
	return time.Duration(c.Export.TimeoutSeconds) * time.Second
}

func (c *Config) ExportLockTTL() time.Duration {
	return time.Duration(c.Export.LockTTLSeconds) * time.Second
}

func (c *Config) PrinterTimeout() time.Duration {
	return time.Duration(c.Printer.TimeoutSeconds) * time.Second
}

func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.Session.IdleMinutes) * time.Minute
}
