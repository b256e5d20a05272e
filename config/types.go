// Package config provides configuration management for the job
// pipeline: typed settings, file loading with environment overrides
// and hot-reload.
package config

import (
	"time"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// String returns the string representation of Environment
func (e Environment) String() string {
	return string(e)
}

// IsValid checks if the environment is valid
func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvTesting, EnvStaging, EnvProduction:
		return true
	default:
		return false
	}
}

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	return string(l)
}

// IsValid checks if the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Compute transport selection.
const (
	TransportLocal = "local"
	TransportNATS  = "nats"
)

// Storage backend selection.
const (
	BackendMemory = "memory"
	BackendS3     = "s3"
)

// Config represents the complete pipeline configuration
type Config struct {
	// Application configuration
	App AppConfig `yaml:"app" json:"app"`

	// Logging configuration
	Log LogConfig `yaml:"log" json:"log"`

	// Pipeline actor configuration
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Compute dispatch configuration
	Compute ComputeConfig `yaml:"compute" json:"compute"`

	// Result storage configuration
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Custom configurations (for user-defined extensions)
	Custom map[string]interface{} `yaml:"custom,omitempty" json:"custom,omitempty"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	// Application name
	Name string `yaml:"name" json:"name"`

	// Application version
	Version string `yaml:"version" json:"version"`

	// Deployment environment
	Environment Environment `yaml:"environment" json:"environment"`

	// Enable debug mode
	Debug bool `yaml:"debug" json:"debug"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	// Log level
	Level LogLevel `yaml:"level" json:"level"`

	// Log format (json, text)
	Format string `yaml:"format" json:"format"`

	// Output destination (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`
}

// PipelineConfig contains the stage actor settings
type PipelineConfig struct {
	// Maximum accepted submission size
	MaxDataSize int `yaml:"max_data_size" json:"max_data_size"`

	// Maximum accepted unit_count tuning value
	MaxUnitCount int `yaml:"max_unit_count" json:"max_unit_count"`

	// Per-job retry ceiling in each stage actor
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// Base retry delay, doubled per attempt
	BackoffUnit time.Duration `yaml:"backoff_unit" json:"backoff_unit"`

	// Mailbox capacity of each stage actor
	MailboxSize int `yaml:"mailbox_size" json:"mailbox_size"`

	// Bound on a single processing attempt
	ProcessTimeout time.Duration `yaml:"process_timeout" json:"process_timeout"`
}

// ComputeConfig selects and configures the compute dispatcher
type ComputeConfig struct {
	// Transport is "local" or "nats"
	Transport string `yaml:"transport" json:"transport"`

	// NATS settings, used when Transport is "nats"
	NATS NATSConfig `yaml:"nats" json:"nats"`
}

// NATSConfig contains the messaging subjects for remote compute
type NATSConfig struct {
	// Server URL
	URL string `yaml:"url" json:"url"`

	// Request subjects
	NormalizeSubject string `yaml:"normalize_subject" json:"normalize_subject"`
	TransformSubject string `yaml:"transform_subject" json:"transform_subject"`

	// Result subjects
	NormalizeResultSubject string `yaml:"normalize_result_subject" json:"normalize_result_subject"`
	TransformResultSubject string `yaml:"transform_result_subject" json:"transform_result_subject"`
}

// StorageConfig selects and configures the result store
type StorageConfig struct {
	// Backend is "memory" or "s3"
	Backend string `yaml:"backend" json:"backend"`

	// S3 settings, used when Backend is "s3"
	S3 S3Config `yaml:"s3" json:"s3"`
}

// S3Config contains the object store settings
type S3Config struct {
	// Bucket name
	Bucket string `yaml:"bucket" json:"bucket"`

	// Region
	Region string `yaml:"region" json:"region"`

	// Key prefix for all pipeline objects
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "jobflow",
			Version:     "1.0.0",
			Environment: EnvDevelopment,
			Debug:       true,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: "text",
			Output: "stdout",
		},
		Pipeline: PipelineConfig{
			MaxDataSize:    1000000,
			MaxUnitCount:   10,
			MaxRetries:     3,
			BackoffUnit:    time.Second,
			MailboxSize:    1000,
			ProcessTimeout: 30 * time.Second,
		},
		Compute: ComputeConfig{
			Transport: TransportLocal,
			NATS: NATSConfig{
				URL:                    "nats://127.0.0.1:4222",
				NormalizeSubject:       "jobflow.compute.normalize",
				TransformSubject:       "jobflow.compute.transform",
				NormalizeResultSubject: "jobflow.compute.normalize.result",
				TransformResultSubject: "jobflow.compute.transform.result",
			},
		},
		Storage: StorageConfig{
			Backend: BackendMemory,
			S3: S3Config{
				Region: "us-east-1",
			},
		},
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return ErrInvalidAppName
	}
	if !c.App.Environment.IsValid() {
		return ErrInvalidEnvironment
	}
	if !c.Log.Level.IsValid() {
		return ErrInvalidLogLevel
	}

	if c.Pipeline.MaxDataSize <= 0 {
		return ErrInvalidMaxDataSize
	}
	if c.Pipeline.MaxUnitCount <= 0 {
		return ErrInvalidMaxUnitCount
	}
	if c.Pipeline.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.Pipeline.MailboxSize <= 0 {
		return ErrInvalidMailboxSize
	}

	switch c.Compute.Transport {
	case TransportLocal:
	case TransportNATS:
		if c.Compute.NATS.URL == "" {
			return ErrInvalidNATSURL
		}
	default:
		return ErrInvalidTransport
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			return ErrInvalidS3Bucket
		}
	default:
		return ErrInvalidBackend
	}

	return nil
}
