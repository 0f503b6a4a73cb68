// Package app assembles the page bot from the core packages.
package app

import (
	"strings"
	"time"

	"github.com/m3rciful/pagebot/core/apperror"
	coreconfig "github.com/m3rciful/pagebot/core/config"
	coredatabase "github.com/m3rciful/pagebot/core/database"
)

// DispatchConfig sizes the event dispatcher.
type DispatchConfig struct {
	Workers          int `yaml:"workers" envconfig:"DISPATCH_WORKERS"`
	QueueSize        int `yaml:"queue_size" envconfig:"DISPATCH_QUEUE_SIZE"`
	EnqueueTimeoutMS int `yaml:"enqueue_timeout_ms"`
	HandleTimeoutMS  int `yaml:"handle_timeout_ms"`
}

// SenderConfig tunes retries of outbound Bot API calls.
type SenderConfig struct {
	MaxRetries     int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms"`
	MaxDurationMS  int `yaml:"max_duration_ms"`
}

// ReportConfig enables the daily activity report. Empty Schedule disables it.
type ReportConfig struct {
	Schedule string `yaml:"schedule" envconfig:"REPORT_SCHEDULE"`
}

// HealthConfig enables the health endpoint. Empty Listen disables it.
type HealthConfig struct {
	Listen string `yaml:"listen" envconfig:"HEALTH_LISTEN"`
}

// Config is the full application document: core sections plus app sections.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Dispatch DispatchConfig      `yaml:"dispatch"`
	Sender   SenderConfig        `yaml:"sender"`
	Report   ReportConfig        `yaml:"report"`
	Health   HealthConfig        `yaml:"health"`
}

// CoreConfig exposes the embedded transport configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, applies environment overrides and validates every section.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the document and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	for field, v := range map[string]int{
		"dispatch.workers":            c.Dispatch.Workers,
		"dispatch.queue_size":         c.Dispatch.QueueSize,
		"dispatch.enqueue_timeout_ms": c.Dispatch.EnqueueTimeoutMS,
		"dispatch.handle_timeout_ms":  c.Dispatch.HandleTimeoutMS,
		"sender.max_retries":          c.Sender.MaxRetries,
		"sender.retry_backoff_ms":     c.Sender.RetryBackoffMS,
		"sender.max_duration_ms":      c.Sender.MaxDurationMS,
	} {
		if v < 0 {
			return apperror.Invalid(field, "must be >= 0")
		}
	}
	c.Report.Schedule = strings.TrimSpace(c.Report.Schedule)
	c.Health.Listen = strings.TrimSpace(c.Health.Listen)
	return nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
