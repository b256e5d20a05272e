// Package config provides configuration loading and parsing functionality
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFormat represents the configuration file format
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// Loader handles configuration loading from various sources
type Loader struct {
	// Configuration search paths
	searchPaths []string

	// Environment variable prefix
	envPrefix string

	// Default configuration
	defaultConfig *Config
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		searchPaths: []string{
			".",
			"./config",
			"./configs",
			"/etc/jobflow",
			os.Getenv("HOME") + "/.jobflow",
		},
		envPrefix:     "JOBFLOW",
		defaultConfig: DefaultConfig(),
	}
}

// SetSearchPaths sets the configuration file search paths
func (l *Loader) SetSearchPaths(paths []string) *Loader {
	l.searchPaths = paths
	return l
}

// SetEnvPrefix sets the environment variable prefix
func (l *Loader) SetEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// SetDefaultConfig sets the default configuration
func (l *Loader) SetDefaultConfig(config *Config) *Loader {
	l.defaultConfig = config
	return l
}

// LoadFromFile loads configuration from a specific file
func (l *Loader) LoadFromFile(filename string) (*Config, error) {
	return l.loadFromFile(filename)
}

// LoadFromReader loads configuration from an io.Reader
func (l *Loader) LoadFromReader(reader io.Reader, format ConfigFormat) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration data: %w", err)
	}

	return l.parseConfig(data, format)
}

// AutoLoad discovers a configuration file in the search paths, falling
// back to defaults when none exists. Environment overrides apply in
// either case.
func (l *Loader) AutoLoad() (*Config, error) {
	configFile, err := l.findConfigFile()
	if err != nil {
		if err != ErrConfigFileNotFound {
			return nil, err
		}

		config := l.defaults()
		if err := l.loadFromEnv(config); err != nil {
			return nil, fmt.Errorf("failed to load config from environment: %w", err)
		}
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		return config, nil
	}

	return l.loadFromFile(configFile)
}

// findConfigFile searches for configuration files in search paths
func (l *Loader) findConfigFile() (string, error) {
	filenames := []string{
		"jobflow.yaml", "jobflow.yml",
		"config.yaml", "config.yml",
		"jobflow.json", "config.json",
	}

	for _, searchPath := range l.searchPaths {
		for _, filename := range filenames {
			fullPath := filepath.Join(searchPath, filename)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
	}

	return "", ErrConfigFileNotFound
}

// loadFromFile loads configuration from a file
func (l *Loader) loadFromFile(filename string) (*Config, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	var format ConfigFormat
	switch ext {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".json":
		format = FormatJSON
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := l.parseConfig(data, format)
	if err != nil {
		return nil, err
	}

	// Merge with default config to fill missing fields
	config = l.mergeConfig(l.defaults(), config)

	// Override with environment variables
	if err := l.loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (l *Loader) defaults() *Config {
	if l.defaultConfig != nil {
		cloned := *l.defaultConfig
		return &cloned
	}
	return DefaultConfig()
}

// parseConfig parses configuration data based on format
func (l *Loader) parseConfig(data []byte, format ConfigFormat) (*Config, error) {
	config := &Config{}

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	return config, nil
}

// loadFromEnv loads configuration overrides from environment variables
func (l *Loader) loadFromEnv(config *Config) error {
	// App configuration
	if val := os.Getenv(l.envPrefix + "_APP_NAME"); val != "" {
		config.App.Name = val
	}
	if val := os.Getenv(l.envPrefix + "_APP_ENVIRONMENT"); val != "" {
		config.App.Environment = Environment(val)
	}
	if val := os.Getenv(l.envPrefix + "_APP_DEBUG"); val != "" {
		config.App.Debug = strings.ToLower(val) == "true"
	}

	// Log configuration
	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		config.Log.Level = LogLevel(val)
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		config.Log.Format = val
	}
	if val := os.Getenv(l.envPrefix + "_LOG_OUTPUT"); val != "" {
		config.Log.Output = val
	}

	// Pipeline configuration
	if val := os.Getenv(l.envPrefix + "_PIPELINE_MAX_DATA_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Pipeline.MaxDataSize = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_PIPELINE_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			config.Pipeline.MaxRetries = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_PIPELINE_BACKOFF_UNIT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.Pipeline.BackoffUnit = d
		}
	}

	// Compute configuration
	if val := os.Getenv(l.envPrefix + "_COMPUTE_TRANSPORT"); val != "" {
		config.Compute.Transport = val
	}
	if val := os.Getenv(l.envPrefix + "_NATS_URL"); val != "" {
		config.Compute.NATS.URL = val
	}

	// Storage configuration
	if val := os.Getenv(l.envPrefix + "_STORAGE_BACKEND"); val != "" {
		config.Storage.Backend = val
	}
	if val := os.Getenv(l.envPrefix + "_S3_BUCKET"); val != "" {
		config.Storage.S3.Bucket = val
	}
	if val := os.Getenv(l.envPrefix + "_S3_REGION"); val != "" {
		config.Storage.S3.Region = val
	}
	if val := os.Getenv(l.envPrefix + "_S3_PREFIX"); val != "" {
		config.Storage.S3.Prefix = val
	}

	return nil
}

// mergeConfig merges user config with default config
func (l *Loader) mergeConfig(defaultConfig, userConfig *Config) *Config {
	merged := *defaultConfig

	// App config
	if userConfig.App.Name != "" {
		merged.App.Name = userConfig.App.Name
	}
	if userConfig.App.Version != "" {
		merged.App.Version = userConfig.App.Version
	}
	if userConfig.App.Environment != "" {
		merged.App.Environment = userConfig.App.Environment
	}
	merged.App.Debug = userConfig.App.Debug

	// Log config
	if userConfig.Log.Level != "" {
		merged.Log.Level = userConfig.Log.Level
	}
	if userConfig.Log.Format != "" {
		merged.Log.Format = userConfig.Log.Format
	}
	if userConfig.Log.Output != "" {
		merged.Log.Output = userConfig.Log.Output
	}

	// Pipeline config
	if userConfig.Pipeline.MaxDataSize != 0 {
		merged.Pipeline.MaxDataSize = userConfig.Pipeline.MaxDataSize
	}
	if userConfig.Pipeline.MaxUnitCount != 0 {
		merged.Pipeline.MaxUnitCount = userConfig.Pipeline.MaxUnitCount
	}
	if userConfig.Pipeline.MaxRetries != 0 {
		merged.Pipeline.MaxRetries = userConfig.Pipeline.MaxRetries
	}
	if userConfig.Pipeline.BackoffUnit != 0 {
		merged.Pipeline.BackoffUnit = userConfig.Pipeline.BackoffUnit
	}
	if userConfig.Pipeline.MailboxSize != 0 {
		merged.Pipeline.MailboxSize = userConfig.Pipeline.MailboxSize
	}
	if userConfig.Pipeline.ProcessTimeout != 0 {
		merged.Pipeline.ProcessTimeout = userConfig.Pipeline.ProcessTimeout
	}

	// Compute config
	if userConfig.Compute.Transport != "" {
		merged.Compute.Transport = userConfig.Compute.Transport
	}
	if userConfig.Compute.NATS.URL != "" {
		merged.Compute.NATS.URL = userConfig.Compute.NATS.URL
	}
	if userConfig.Compute.NATS.NormalizeSubject != "" {
		merged.Compute.NATS.NormalizeSubject = userConfig.Compute.NATS.NormalizeSubject
	}
	if userConfig.Compute.NATS.TransformSubject != "" {
		merged.Compute.NATS.TransformSubject = userConfig.Compute.NATS.TransformSubject
	}
	if userConfig.Compute.NATS.NormalizeResultSubject != "" {
		merged.Compute.NATS.NormalizeResultSubject = userConfig.Compute.NATS.NormalizeResultSubject
	}
	if userConfig.Compute.NATS.TransformResultSubject != "" {
		merged.Compute.NATS.TransformResultSubject = userConfig.Compute.NATS.TransformResultSubject
	}

	// Storage config
	if userConfig.Storage.Backend != "" {
		merged.Storage.Backend = userConfig.Storage.Backend
	}
	if userConfig.Storage.S3.Bucket != "" {
		merged.Storage.S3.Bucket = userConfig.Storage.S3.Bucket
	}
	if userConfig.Storage.S3.Region != "" {
		merged.Storage.S3.Region = userConfig.Storage.S3.Region
	}
	if userConfig.Storage.S3.Prefix != "" {
		merged.Storage.S3.Prefix = userConfig.Storage.S3.Prefix
	}

	// Custom fields
	if userConfig.Custom != nil {
		if merged.Custom == nil {
			merged.Custom = make(map[string]interface{})
		}
		for k, v := range userConfig.Custom {
			merged.Custom[k] = v
		}
	}

	return &merged
}
