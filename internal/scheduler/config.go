package scheduler

import (
	"strings"
	"time"

	"github.com/smallbiznis/equiprent/internal/config"
)

// Config controls which jobs run and when. Specs use the five-field cron
// syntax and are evaluated in UTC.
type Config struct {
	Enabled    bool
	RatesSpec  string
	DueSpec    string
	JobTimeout time.Duration
	LockTTL    time.Duration
	LockPrefix string
}

func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		RatesSpec:  "0 */6 * * *",
		DueSpec:    "15 7 * * *",
		JobTimeout: 30 * time.Second,
		LockTTL:    time.Minute,
		LockPrefix: "equiprent:scheduler:",
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:   cfg.SchedulerEnabled,
		RatesSpec: cfg.SchedulerRatesSpec,
		DueSpec:   cfg.SchedulerDueSpec,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.RatesSpec) == "" {
		c.RatesSpec = defaults.RatesSpec
	}
	if strings.TrimSpace(c.DueSpec) == "" {
		c.DueSpec = defaults.DueSpec
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LockPrefix == "" {
		c.LockPrefix = defaults.LockPrefix
	}
	return c
}
