// pkg/core/config.go
package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/arc-language/refdata/pkg/fetch"
	"github.com/arc-language/refdata/pkg/manifest"
)

// EnvPrefix prefixes environment overrides, e.g. REFDATA_ARCHIVE_TIMEOUT=10m
const EnvPrefix = "REFDATA"

// Config holds refdata tool settings
type Config struct {
	Dependencies   string        `yaml:"dependencies" mapstructure:"dependencies"`
	ArchiveTimeout time.Duration `yaml:"archive_timeout" mapstructure:"archive_timeout"`
	ConfigTimeout  time.Duration `yaml:"config_timeout" mapstructure:"config_timeout"`
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	TempDir        string        `yaml:"temp_dir,omitempty" mapstructure:"temp_dir"`
	KeepGoing      bool          `yaml:"keep_going" mapstructure:"keep_going"`
	Debug          bool          `yaml:"debug" mapstructure:"debug"`
	MetricsFile    string        `yaml:"metrics_file,omitempty" mapstructure:"metrics_file"`
	EnvFile        string        `yaml:"env_file,omitempty" mapstructure:"env_file"`
	Retry          RetryConfig   `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig mirrors fetch.RetryPolicy in a file-friendly shape
type RetryConfig struct {
	Attempts       int           `yaml:"attempts" mapstructure:"attempts"`
	ConnectRetries int           `yaml:"connect" mapstructure:"connect"`
	ReadRetries    int           `yaml:"read" mapstructure:"read"`
	BackoffFactor  time.Duration `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	policy := fetch.DefaultRetryPolicy()
	return &Config{
		Dependencies:   manifest.DefaultSource,
		ArchiveTimeout: fetch.DefaultArchiveTimeout,
		ConfigTimeout:  fetch.DefaultConfigTimeout,
		UserAgent:      fetch.DefaultUserAgent,
		Retry: RetryConfig{
			Attempts:       policy.MaxAttempts,
			ConnectRetries: policy.ConnectRetries,
			ReadRetries:    policy.ReadRetries,
			BackoffFactor:  policy.BackoffFactor,
			MaxBackoff:     policy.MaxBackoff,
		},
	}
}

// DefaultConfigPath returns $HOME/.config/refdata/config.yaml
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "refdata", "config.yaml"), nil
}

// LoadConfig loads configuration from file, then applies REFDATA_* environment
// overrides. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultConfigPath()
		if err == nil {
			path = p
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) || explicit {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("dependencies", d.Dependencies)
	v.SetDefault("archive_timeout", d.ArchiveTimeout)
	v.SetDefault("config_timeout", d.ConfigTimeout)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("temp_dir", d.TempDir)
	v.SetDefault("keep_going", d.KeepGoing)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("env_file", d.EnvFile)
	v.SetDefault("retry.attempts", d.Retry.Attempts)
	v.SetDefault("retry.connect", d.Retry.ConnectRetries)
	v.SetDefault("retry.read", d.Retry.ReadRetries)
	v.SetDefault("retry.backoff_factor", d.Retry.BackoffFactor)
	v.SetDefault("retry.max_backoff", d.Retry.MaxBackoff)
}

// Validate rejects settings the installer cannot run with
func (c *Config) Validate() error {
	switch {
	case c.ArchiveTimeout <= 0:
		return fmt.Errorf("archive_timeout must be positive, got %s", c.ArchiveTimeout)
	case c.ConfigTimeout <= 0:
		return fmt.Errorf("config_timeout must be positive, got %s", c.ConfigTimeout)
	case c.Retry.Attempts < 1:
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	case c.Retry.ConnectRetries < 0 || c.Retry.ReadRetries < 0:
		return fmt.Errorf("retry.connect and retry.read must not be negative")
	case c.Retry.BackoffFactor < 0 || c.Retry.MaxBackoff < 0:
		return fmt.Errorf("retry backoff durations must not be negative")
	}
	return nil
}

// RetryPolicy converts the retry settings for the network client
func (c *Config) RetryPolicy() fetch.RetryPolicy {
	policy := fetch.DefaultRetryPolicy()
	policy.MaxAttempts = c.Retry.Attempts
	policy.ConnectRetries = c.Retry.ConnectRetries
	policy.ReadRetries = c.Retry.ReadRetries
	policy.BackoffFactor = c.Retry.BackoffFactor
	policy.MaxBackoff = c.Retry.MaxBackoff
	return policy
}

// SaveConfig saves configuration to file
func SaveConfig(cfg *Config, path string) error {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
