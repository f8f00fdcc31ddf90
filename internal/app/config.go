package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GraphPath string // hcl file or directory

	Listen          string
	HealthcheckPort int
	LogFormat       string
	LogLevel        string

	// Resolve selects one-shot mode: the value at this path is printed as
	// JSON instead of serving the graph.
	Resolve         string
	ResolveTimeout  time.Duration
	QueryTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Defaults applied by NewConfig.
const (
	DefaultListen          = ":8080"
	DefaultResolveTimeout  = 30 * time.Second
	DefaultQueryTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GraphPath == "" {
		return nil, errors.New("GraphPath is a required configuration field and cannot be empty")
	}
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &cfg, nil
}
