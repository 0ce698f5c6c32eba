// ABOUTME: YAML configuration file loading for the openmanus CLI.
// ABOUTME: File values fill in defaults; command-line flags always win.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk configuration shape.
type fileConfig struct {
	Addr         string `yaml:"addr"`
	DataDir      string `yaml:"data_dir"`
	WorkspaceDir string `yaml:"workspace_dir"`
	LogLevel     string `yaml:"log_level"`

	// Stream timing, in Go duration syntax (e.g. "5s").
	HeartbeatInterval string `yaml:"heartbeat_interval"`
	RetryDelay        string `yaml:"retry_delay"`
	MaxRetries        int    `yaml:"max_retries"`
}

// loadConfigFile reads and parses a YAML config file. A missing file is not
// an error when the path was not explicitly given.
func loadConfigFile(path string, explicit bool) (fileConfig, error) {
	var fc fileConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return fc, nil
		}
		return fc, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return fc, nil
}

// applyFileConfig fills unset cfg fields from the file. Flags that were set
// explicitly keep their values.
func applyFileConfig(cfg *config, fc fileConfig, flagsSet map[string]bool) error {
	if fc.Addr != "" && !flagsSet["addr"] {
		cfg.addr = fc.Addr
	}
	if fc.DataDir != "" && !flagsSet["data-dir"] {
		cfg.dataDir = fc.DataDir
	}
	if fc.WorkspaceDir != "" && !flagsSet["workspace"] {
		cfg.workspaceDir = fc.WorkspaceDir
	}
	if fc.LogLevel != "" && !flagsSet["log-level"] {
		cfg.logLevel = fc.LogLevel
	}

	if fc.HeartbeatInterval != "" {
		d, err := time.ParseDuration(fc.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("heartbeat_interval: %w", err)
		}
		cfg.heartbeatInterval = d
	}
	if fc.RetryDelay != "" {
		d, err := time.ParseDuration(fc.RetryDelay)
		if err != nil {
			return fmt.Errorf("retry_delay: %w", err)
		}
		cfg.retryDelay = d
	}
	if fc.MaxRetries > 0 {
		cfg.maxRetries = fc.MaxRetries
	}
	return nil
}
