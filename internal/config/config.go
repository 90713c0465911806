// Package config loads server settings from flags, KG_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved server configuration.
type Config struct {
	Transport         string `mapstructure:"transport"`
	Port              string `mapstructure:"port"`
	DataDir           string `mapstructure:"data_dir"`
	LogMode           string `mapstructure:"log_mode"`
	EmbeddingDims     int    `mapstructure:"embedding_dims"`
	MaxTraversalDepth int    `mapstructure:"max_traversal_depth"`
	TraceConsole      bool   `mapstructure:"trace_console"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Transport:         "stdio",
		Port:              "8081",
		DataDir:           "./data",
		LogMode:           "dev",
		EmbeddingDims:     0,
		MaxTraversalDepth: 6,
		TraceConsole:      false,
	}
}

// Load resolves the configuration. flags may be nil; configFile may be
// empty, in which case knowledge-graph.yaml is looked up in the working
// directory and silently skipped when absent.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	def := Defaults()

	v := viper.New()
	v.SetDefault("transport", def.Transport)
	v.SetDefault("port", def.Port)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("log_mode", def.LogMode)
	v.SetDefault("embedding_dims", def.EmbeddingDims)
	v.SetDefault("max_traversal_depth", def.MaxTraversalDepth)
	v.SetDefault("trace_console", def.TraceConsole)

	v.SetEnvPrefix("KG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		// Flags use dashes, keys use underscores.
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("knowledge-graph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("unknown transport %q (use stdio or http)", c.Transport)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.EmbeddingDims < 0 {
		return fmt.Errorf("embedding_dims must be >= 0, got %d", c.EmbeddingDims)
	}
	if c.MaxTraversalDepth < 0 {
		return fmt.Errorf("max_traversal_depth must be >= 0, got %d", c.MaxTraversalDepth)
	}
	return nil
}
