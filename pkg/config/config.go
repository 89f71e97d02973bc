// Package config provides configuration loading and management for mrcstack.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"mrcstack/pkg/stripe"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Destripe parameters
	Destripe struct {
		// Mode is the stripe direction to suppress: horizontal or vertical
		Mode string `yaml:"mode"`

		// Workers is the number of planes filtered concurrently; 0 uses
		// every available core
		Workers int `yaml:"workers"`

		// OutputTag is inserted before the extension of filtered copies
		OutputTag string `yaml:"outputTag"`
	} `yaml:"destripe"`

	// Preview parameters
	Preview struct {
		// Transformed applies the alignment parameters when rendering
		Transformed bool `yaml:"transformed"`

		// Wavelength selects which wavelength previews render
		Wavelength int `yaml:"wavelength"`
	} `yaml:"preview"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Destripe.Mode = stripe.Horizontal.String()
	cfg.Destripe.Workers = runtime.NumCPU()
	cfg.Destripe.OutputTag = stripe.DefaultTag

	cfg.Preview.Transformed = true
	cfg.Preview.Wavelength = 0

	return cfg
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if _, err := stripe.ParseMode(c.Destripe.Mode); err != nil {
		return fmt.Errorf("destripe.mode: %w", err)
	}
	if c.Destripe.Workers < 0 {
		return fmt.Errorf("destripe.workers must not be negative, got %d", c.Destripe.Workers)
	}
	if c.Destripe.OutputTag == "" {
		return fmt.Errorf("destripe.outputTag must not be empty")
	}
	if c.Preview.Wavelength < 0 {
		return fmt.Errorf("preview.wavelength must not be negative, got %d", c.Preview.Wavelength)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML over the defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
