// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/plugin/monagent/agent/emitter"
)

// Config is the agent.yaml configuration.
type Config struct {
	Main    MainConfig         `yaml:"main" json:"main"`
	API     emitter.HTTPConfig `yaml:"api" json:"api"`
	Statsd  StatsdConfig       `yaml:"statsd" json:"statsd"`
	Selfmon SelfmonConfig      `yaml:"selfmon" json:"selfmon"`
	Logging LoggingConfig      `yaml:"logging" json:"logging"`
}

type MainConfig struct {
	Hostname             string            `yaml:"hostname,omitempty" json:"hostname"`
	Dimensions           map[string]string `yaml:"dimensions,omitempty" json:"dimensions"`
	DelegatedTenant      string            `yaml:"delegated_tenant,omitempty" json:"delegated_tenant"`
	CheckFreq            confopt.Duration  `yaml:"check_freq,omitempty" json:"check_freq"`
	RecentPointThreshold confopt.Duration  `yaml:"recent_point_threshold,omitempty" json:"recent_point_threshold"`
	MaxIdleFlushes       int               `yaml:"max_idle_flushes,omitempty" json:"max_idle_flushes"`
	LockDir              string            `yaml:"lock_dir,omitempty" json:"lock_dir"`
}

type StatsdConfig struct {
	Enabled confopt.FlexBool `yaml:"enabled" json:"enabled"`
	Address string           `yaml:"address,omitempty" json:"address"`
}

type SelfmonConfig struct {
	Address string `yaml:"address,omitempty" json:"address"`
}

type LoggingConfig struct {
	Level string `yaml:"level,omitempty" json:"level"`
}

func DefaultConfig() Config {
	cfg := Config{
		Main: MainConfig{
			CheckFreq:            confopt.Duration(30 * time.Second),
			RecentPointThreshold: confopt.Duration(time.Hour),
			LockDir:              "/var/run/monagent",
		},
		Statsd: StatsdConfig{
			Address: "127.0.0.1:8125",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
	cfg.API.URL = "http://localhost:8080/v2.0/metrics"
	cfg.API.Timeout = confopt.Duration(10 * time.Second)
	cfg.API.MaxBatchSize = 1000
	cfg.API.MaxRetries = 3
	return cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(bs) == 0 {
		return cfg, nil
	}

	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, fmt.Errorf("parse '%s': %v", path, err)
	}
	if cfg.Main.CheckFreq <= 0 {
		return cfg, fmt.Errorf("'main.check_freq' must be positive, got %s", cfg.Main.CheckFreq)
	}
	return cfg, nil
}

// AggregatorConfig returns the aggregator settings, falling back to the OS host name.
func (c Config) AggregatorConfig() aggregator.Config {
	hostname := c.Main.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	return aggregator.Config{
		Hostname:             hostname,
		Dimensions:           c.Main.Dimensions,
		DelegatedTenant:      c.Main.DelegatedTenant,
		RecentPointThreshold: c.Main.RecentPointThreshold.Duration(),
		MaxIdleFlushes:       c.Main.MaxIdleFlushes,
	}
}
