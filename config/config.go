// Package config loads application settings for the threadmanager binary.
//
// Values come from an optional config file (yaml, toml or json) and are
// overridden by THREADMANAGER_* environment variables, e.g.
// THREADMANAGER_MANAGER_MAX_FAMILIES=128.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Swind/go-thread-manager/core"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "THREADMANAGER"

type Config struct {
	Manager ManagerConfig `mapstructure:"manager"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

type ManagerConfig struct {
	MaxFamilies     int    `mapstructure:"max_families"`
	QueueOrder      string `mapstructure:"queue_order"` // fifo, request_id
	HistoryCapacity int    `mapstructure:"history_capacity"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
}

type MetricsConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Namespace    string        `mapstructure:"namespace"`
	Addr         string        `mapstructure:"addr"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Endpoint is an OTLP/HTTP collector address; empty exports to stdout.
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("manager.max_families", core.DefaultMaxFamilies)
	v.SetDefault("manager.queue_order", core.QueueOrderFIFO.String())
	v.SetDefault("manager.history_capacity", 100)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "threadmanager")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.poll_interval", time.Second)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "threadmanager")
}

// Load reads path (if non-empty) and applies environment overrides.
// With an empty path, ./threadmanager.{yaml,toml,json} is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("threadmanager")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults alone always decode.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Manager.MaxFamilies <= 0 {
		return fmt.Errorf("manager.max_families must be positive, got %d", c.Manager.MaxFamilies)
	}
	if c.Manager.HistoryCapacity <= 0 {
		return fmt.Errorf("manager.history_capacity must be positive, got %d", c.Manager.HistoryCapacity)
	}
	if _, err := core.ParseQueueOrder(c.Manager.QueueOrder); err != nil {
		return fmt.Errorf("manager.queue_order: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.PollInterval <= 0 {
		return fmt.Errorf("metrics.poll_interval must be positive, got %s", c.Metrics.PollInterval)
	}
	return nil
}

// NewLogger builds a logrus logger from the log section, writing to stderr.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	if c.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}

// ManagerConfig converts the manager section into a core.ManagerConfig.
// Handlers left nil are filled in by core.NewThreadManager.
func (c *Config) ManagerConfig(logger core.Logger, metrics core.Metrics) (*core.ManagerConfig, error) {
	order, err := core.ParseQueueOrder(c.Manager.QueueOrder)
	if err != nil {
		return nil, fmt.Errorf("manager.queue_order: %w", err)
	}
	return &core.ManagerConfig{
		MaxFamilies:     c.Manager.MaxFamilies,
		QueueOrder:      order,
		HistoryCapacity: c.Manager.HistoryCapacity,
		Logger:          logger,
		Metrics:         metrics,
	}, nil
}
