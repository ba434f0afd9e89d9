package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config keeps runtime settings for the bot, read from the environment.
type Config struct {
	TelegramToken string `env:"TELEGRAM_TOKEN" env-required:"true"`
	DatabaseURL   string `env:"DATABASE_URL"   env-default:"study_planner.db"`
	// ReportTime is the HH:MM local time of the daily summary push.
	// Empty disables the job.
	ReportTime string `env:"REPORT_TIME" env-default:"08:00"`
	// RiskLimit caps the number of entries in risk reports.
	RiskLimit int `env:"RISK_LIMIT" env-default:"5"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("config: read env: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.ReportTime != "" {
		if err := validateClock(cfg.ReportTime); err != nil {
			return cfg, err
		}
	}
	if cfg.RiskLimit <= 0 {
		cfg.RiskLimit = 5
	}
	return cfg, nil
}

func validateClock(raw string) error {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return fmt.Errorf("REPORT_TIME %q must be HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return fmt.Errorf("REPORT_TIME %q has an invalid hour", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return fmt.Errorf("REPORT_TIME %q has an invalid minute", raw)
	}
	return nil
}
