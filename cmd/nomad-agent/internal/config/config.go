// Package config loads the nomad-agent daemon's bootstrap configuration: the
// handful of settings a node needs before it can even open its repository
// (where the repository lives, this node's name, the statsd and metrics
// endpoints, logging). Everything past bootstrap is owned by Nomad itself
// (spec §4.7) and is never read from this file again once the node joins a
// cluster.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the nomad-agent bootstrap file, conventionally named
// nomad-agent.yaml.
type Config struct {
	// NodeName identifies this node within its cluster's topology; required
	// until the node resolves its own UID via activation (spec §4.6).
	NodeName string `mapstructure:"nodeName"`

	// RepositoryRoot is the directory storage.Repository.Open manages
	// (config/, license/, sanskrit/ subtrees).
	RepositoryRoot string `mapstructure:"repositoryRoot"`

	// ListenAddr is this node's own address, used only to identify itself
	// in local logs/metrics; the server it fronts has no network listener
	// of its own in this tree (spec §1 Non-goals: RPC transport).
	ListenAddr string `mapstructure:"listenAddr"`

	MetricsAddr string `mapstructure:"metricsAddr"`

	Statsd StatsdConfig `mapstructure:"statsd"`
	Log    LogConfig    `mapstructure:"log"`
}

type StatsdConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"maxSizeMb"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAgeDays"`
	Compress   bool   `mapstructure:"compress"`
}

func defaults() Config {
	return Config{
		RepositoryRoot: "/var/lib/nomad-agent",
		MetricsAddr:    ":9411",
		Statsd:         StatsdConfig{Addr: "127.0.0.1:8125", Prefix: "nomad."},
		Log:            LogConfig{Level: "INFO"},
	}
}

// Load reads the YAML file at path into a Config, falling back to the
// package defaults for anything the file omits.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	cfg := defaults()
	v.SetDefault("repositoryRoot", cfg.RepositoryRoot)
	v.SetDefault("metricsAddr", cfg.MetricsAddr)
	v.SetDefault("statsd.addr", cfg.Statsd.Addr)
	v.SetDefault("statsd.prefix", cfg.Statsd.Prefix)
	v.SetDefault("log.level", cfg.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.NodeName == "" {
		return Config{}, fmt.Errorf("config: nodeName is required")
	}
	return cfg, nil
}
