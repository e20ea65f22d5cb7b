// Package config provides configuration loading and management for signalseg.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"signalseg/pkg/logging"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Filesystem locations
	Paths struct {
		// RawDir is the root folder holding raw datasets (Dataset###_Name/...)
		RawDir string `yaml:"rawDir"`
	} `yaml:"paths"`

	// Processing parameters
	Processing struct {
		// NumCores limits how many cases are written concurrently
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Synthetic dataset parameters
	Generation struct {
		// NumTraining is the number of labeled training cases
		NumTraining int `yaml:"numTraining"`

		// NumTest is the number of unlabeled test cases
		NumTest int `yaml:"numTest"`

		// Length is the number of samples per signal
		Length int `yaml:"length"`

		// Segments is the number of random foreground segments per signal
		Segments int `yaml:"segments"`

		// NoiseStdDev is the standard deviation of the additive Gaussian noise
		NoiseStdDev float64 `yaml:"noiseStdDev"`

		// Seed makes generation reproducible
		Seed uint64 `yaml:"seed"`
	} `yaml:"generation"`

	// Record conversion parameters
	Conversion struct {
		// ExcludedDatabases lists source databases whose records are skipped
		ExcludedDatabases []string `yaml:"excludedDatabases"`

		// ChannelName is the name recorded for channel 0
		ChannelName string `yaml:"channelName"`
	} `yaml:"conversion"`

	// Logging parameters
	Logging logging.Config `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Paths.RawDir = "nnUNet_raw"

	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Generation.NumTraining = 300
	cfg.Generation.NumTest = 100
	cfg.Generation.Length = 1024
	cfg.Generation.Segments = 5
	cfg.Generation.NoiseStdDev = 0.1
	cfg.Generation.Seed = 1234

	cfg.Conversion.ExcludedDatabases = []string{"STANFORD"}
	cfg.Conversion.ChannelName = "LeadII"

	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Verbose = false

	return cfg
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	if c.Paths.RawDir == "" {
		return fmt.Errorf("paths.rawDir must be set")
	}
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if c.Generation.Length < 1 {
		return fmt.Errorf("generation.length must be positive, got %d", c.Generation.Length)
	}
	if c.Generation.NumTraining < 0 || c.Generation.NumTest < 0 {
		return fmt.Errorf("generation case counts must be non-negative")
	}
	if c.Generation.NoiseStdDev < 0 {
		return fmt.Errorf("generation.noiseStdDev must be non-negative")
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
