// Package config handles application configuration and setup
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/retroenv/procmirror/internal/entity"
	"github.com/retroenv/procmirror/internal/layout"
	"github.com/retroenv/procmirror/internal/state"
	"github.com/retroenv/retrogolib/log"
	"gopkg.in/yaml.v3"
)

// Default values of the configuration file.
const (
	DefaultProcessName  = "PathOfExile.exe"
	DefaultTickInterval = 20 * time.Millisecond
	DefaultRefresh      = 100 * time.Millisecond
	DefaultRetry        = 2 * time.Second
)

// File is the optional YAML configuration file.
type File struct {
	ProcessName     string             `yaml:"process_name"`
	Module          string             `yaml:"module"`
	LayoutBuild     string             `yaml:"layout_build"`
	Signatures      string             `yaml:"signatures"`
	Listen          string             `yaml:"listen"`
	TickInterval    time.Duration      `yaml:"tick_interval"`
	RefreshInterval time.Duration      `yaml:"refresh_interval"`
	RetryInterval   time.Duration      `yaml:"retry_interval"`
	CleanupDelay    time.Duration      `yaml:"cleanup_delay"`
	Workers         int                `yaml:"workers"`
	CacheRules      []entity.CacheRule `yaml:"cache_rules"`
}

// Default returns the configuration used without a file.
func Default() File {
	return File{
		ProcessName:     DefaultProcessName,
		TickInterval:    DefaultTickInterval,
		RefreshInterval: DefaultRefresh,
		RetryInterval:   DefaultRetry,
		CleanupDelay:    entity.DefaultCleanupDelay,
	}
}

// Load reads the configuration file, an empty path returns the defaults.
// Values missing in the file keep their defaults.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return File{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return File{}, fmt.Errorf("validating config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the value ranges.
func (f File) Validate() error {
	if err := layout.Check(f.LayoutBuild); err != nil {
		return err
	}
	if f.TickInterval <= 0 {
		return errors.New("tick_interval must be positive")
	}
	if f.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	for _, rule := range f.CacheRules {
		if rule.Name == "" {
			return errors.New("cache rule without name")
		}
		if rule.MinKey > rule.MaxKey {
			return fmt.Errorf("cache rule '%s': min_key %d is above max_key %d",
				rule.Name, rule.MinKey, rule.MaxKey)
		}
	}
	return nil
}

// State returns the controller configuration.
func (f File) State() state.Config {
	return state.Config{
		RefreshInterval: f.RefreshInterval,
		CleanupDelay:    f.CleanupDelay,
		Workers:         f.Workers,
		CacheRules:      f.CacheRules,
	}
}

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}
