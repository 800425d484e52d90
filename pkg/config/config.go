// Package config provides configuration loading and management for
// neuroview. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Encoding parameters for viewer payloads
	Encoding struct {
		// Mode selects the transport: "raw" or "jpeg"
		Mode string `yaml:"mode"`

		// Quality is the lossy quality factor used in jpeg mode (1-100)
		Quality int `yaml:"quality"`
	} `yaml:"encoding"`

	// Limits bound unbounded-latency work
	Limits struct {
		// DecodeTimeoutSeconds caps file load plus slice encoding per request
		DecodeTimeoutSeconds int `yaml:"decodeTimeoutSeconds"`
	} `yaml:"limits"`

	// Export parameters for slice sequence export
	Export struct {
		// Format is the slice image format: "jpeg" or "png"
		Format string `yaml:"format"`

		// Quality is the JPEG quality for exported slices
		Quality int `yaml:"quality"`
	} `yaml:"export"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default encoding parameters
	cfg.Encoding.Mode = "raw"
	cfg.Encoding.Quality = 50

	// Set default limits
	cfg.Limits.DecodeTimeoutSeconds = 60

	// Set default export parameters
	cfg.Export.Format = "jpeg"
	cfg.Export.Quality = 90

	// Set default output parameters
	cfg.Output.Verbose = true

	return cfg
}

// DecodeTimeout returns the configured decode bound as a duration
func (c *Config) DecodeTimeout() time.Duration {
	return time.Duration(c.Limits.DecodeTimeoutSeconds) * time.Second
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

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
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

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
