package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfig tests basic configuration functionality
func TestConfig(t *testing.T) {
	config := DefaultConfig()

	err := config.Validate()
	if err != nil {
		t.Fatalf("Config validation failed: %v", err)
	}

	if config.App.Name != "jobflow" {
		t.Errorf("Expected app name 'jobflow', got '%s'", config.App.Name)
	}
	if config.Compute.Transport != TransportLocal {
		t.Errorf("Expected local transport by default, got '%s'", config.Compute.Transport)
	}
	if config.Storage.Backend != BackendMemory {
		t.Errorf("Expected memory backend by default, got '%s'", config.Storage.Backend)
	}
}

// TestConfigValidation tests configuration validation
func TestConfigValidation(t *testing.T) {
	valid := func(mutate func(*Config)) *Config {
		c := DefaultConfig()
		mutate(c)
		return c
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "invalid app name",
			config:  valid(func(c *Config) { c.App.Name = "" }),
			wantErr: true,
		},
		{
			name:    "invalid environment",
			config:  valid(func(c *Config) { c.App.Environment = "sandbox" }),
			wantErr: true,
		},
		{
			name:    "invalid log level",
			config:  valid(func(c *Config) { c.Log.Level = "verbose" }),
			wantErr: true,
		},
		{
			name:    "invalid max data size",
			config:  valid(func(c *Config) { c.Pipeline.MaxDataSize = 0 }),
			wantErr: true,
		},
		{
			name:    "invalid transport",
			config:  valid(func(c *Config) { c.Compute.Transport = "grpc" }),
			wantErr: true,
		},
		{
			name: "nats transport without url",
			config: valid(func(c *Config) {
				c.Compute.Transport = TransportNATS
				c.Compute.NATS.URL = ""
			}),
			wantErr: true,
		},
		{
			name: "s3 backend without bucket",
			config: valid(func(c *Config) {
				c.Storage.Backend = BackendS3
				c.Storage.S3.Bucket = ""
			}),
			wantErr: true,
		},
		{
			name: "s3 backend with bucket",
			config: valid(func(c *Config) {
				c.Storage.Backend = BackendS3
				c.Storage.S3.Bucket = "jobflow-results"
			}),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestLoader tests configuration loading
func TestLoader(t *testing.T) {
	loader := NewLoader()

	yamlContent := `
app:
  name: pipeline-test
  environment: testing

log:
  level: debug
  format: json

pipeline:
  max_data_size: 5000
  max_retries: 2
  backoff_unit: 100ms

compute:
  transport: local

storage:
  backend: memory
`

	tmpDir := t.TempDir()
	yamlFile := filepath.Join(tmpDir, "jobflow.yaml")
	if err := os.WriteFile(yamlFile, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}

	config, err := loader.LoadFromFile(yamlFile)
	if err != nil {
		t.Fatalf("Failed to load YAML config: %v", err)
	}

	if config.App.Name != "pipeline-test" {
		t.Errorf("Expected app name 'pipeline-test', got '%s'", config.App.Name)
	}
	if config.Log.Level != LogLevelDebug {
		t.Errorf("Expected debug log level, got '%s'", config.Log.Level)
	}
	if config.Pipeline.MaxDataSize != 5000 {
		t.Errorf("Expected max data size 5000, got %d", config.Pipeline.MaxDataSize)
	}
	if config.Pipeline.BackoffUnit != 100*time.Millisecond {
		t.Errorf("Expected 100ms backoff unit, got %v", config.Pipeline.BackoffUnit)
	}

	// Fields the file omits keep their defaults.
	if config.Pipeline.MailboxSize != 1000 {
		t.Errorf("Expected default mailbox size 1000, got %d", config.Pipeline.MailboxSize)
	}
	if config.Compute.NATS.NormalizeSubject != "jobflow.compute.normalize" {
		t.Errorf("Expected default normalize subject, got '%s'", config.Compute.NATS.NormalizeSubject)
	}
}

// TestLoaderFromReader tests loading from an io.Reader
func TestLoaderFromReader(t *testing.T) {
	loader := NewLoader()

	jsonContent := `{"app": {"name": "reader-test"}, "storage": {"backend": "s3", "s3": {"bucket": "b"}}}`
	config, err := loader.LoadFromReader(strings.NewReader(jsonContent), FormatJSON)
	if err != nil {
		t.Fatalf("Failed to load JSON config: %v", err)
	}
	if config.App.Name != "reader-test" {
		t.Errorf("Expected app name 'reader-test', got '%s'", config.App.Name)
	}
	if config.Storage.S3.Bucket != "b" {
		t.Errorf("Expected bucket 'b', got '%s'", config.Storage.S3.Bucket)
	}
}

// TestLoaderEnvironmentOverrides tests environment variable overrides
func TestLoaderEnvironmentOverrides(t *testing.T) {
	t.Setenv("JOBFLOW_APP_NAME", "env-app")
	t.Setenv("JOBFLOW_LOG_LEVEL", "warn")
	t.Setenv("JOBFLOW_PIPELINE_MAX_RETRIES", "5")
	t.Setenv("JOBFLOW_S3_BUCKET", "env-bucket")

	loader := NewLoader().SetSearchPaths([]string{t.TempDir()})
	config, err := loader.AutoLoad()
	if err != nil {
		t.Fatalf("AutoLoad failed: %v", err)
	}

	if config.App.Name != "env-app" {
		t.Errorf("Expected app name 'env-app', got '%s'", config.App.Name)
	}
	if config.Log.Level != LogLevelWarn {
		t.Errorf("Expected warn log level, got '%s'", config.Log.Level)
	}
	if config.Pipeline.MaxRetries != 5 {
		t.Errorf("Expected max retries 5, got %d", config.Pipeline.MaxRetries)
	}
	if config.Storage.S3.Bucket != "env-bucket" {
		t.Errorf("Expected bucket 'env-bucket', got '%s'", config.Storage.S3.Bucket)
	}
}

// TestAutoLoadWithoutFile tests the default fallback
func TestAutoLoadWithoutFile(t *testing.T) {
	loader := NewLoader().SetSearchPaths([]string{t.TempDir()})

	config, err := loader.AutoLoad()
	if err != nil {
		t.Fatalf("AutoLoad failed: %v", err)
	}
	if config.App.Name != "jobflow" {
		t.Errorf("Expected default app name, got '%s'", config.App.Name)
	}
}

// TestWatcher tests configuration hot-reload
func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()
	yamlFile := filepath.Join(tmpDir, "jobflow.yaml")

	initial := "app:\n  name: watch-test\n"
	if err := os.WriteFile(yamlFile, []byte(initial), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	watcher, err := NewWatcher(yamlFile, NewLoader())
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	if got := watcher.GetConfig().App.Name; got != "watch-test" {
		t.Fatalf("Expected initial app name 'watch-test', got '%s'", got)
	}

	changed := make(chan *Config, 1)
	watcher.OnConfigChange(func(oldConfig, newConfig *Config) {
		changed <- newConfig
	})

	if err := watcher.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	updated := "app:\n  name: watch-test-updated\n"
	if err := os.WriteFile(yamlFile, []byte(updated), 0644); err != nil {
		t.Fatalf("Failed to update config file: %v", err)
	}

	select {
	case newConfig := <-changed:
		if newConfig.App.Name != "watch-test-updated" {
			t.Errorf("Expected updated app name, got '%s'", newConfig.App.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for config reload")
	}

	if got := watcher.GetConfig().App.Name; got != "watch-test-updated" {
		t.Errorf("Expected current config updated, got '%s'", got)
	}
}
