// Package config provides the configuration system for Quarry.
// It defines the StoreConfig structure consumed by object store adapters
// and a YAML loader with environment variable substitution.
//
// A store configuration is immutable once constructed: adapters copy it at
// construction time and readers derived from a store share the copy
// read-only. Mutating a StoreConfig after handing it to a store has no
// effect on that store.
package config

import (
	"time"

	"github.com/quarrydata/quarry/pkg/errors"
)

const (
	// DefaultReadTimeout bounds a single range read, footer fetch included.
	DefaultReadTimeout = 10 * time.Second
	// DefaultOperationTimeout bounds listing and upload calls.
	DefaultOperationTimeout = 30 * time.Second
)

// Credentials carries static credential material for a remote store.
// All fields are optional; an empty Credentials falls through to the
// ambient credential chain (environment, shared config, instance profile).
type Credentials struct {
	// AccessKeyID is the static access key
	AccessKeyID string `yaml:"access_key_id" json:"access_key_id"`
	// SecretAccessKey is the static secret key
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	// SessionToken is the optional session token
	SessionToken string `yaml:"session_token" json:"session_token"`
	// Provider labels the credential source (e.g. "Static")
	Provider string `yaml:"provider" json:"provider"`
}

// Empty reports whether no static credentials were supplied.
func (c Credentials) Empty() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == ""
}

// RetryConfig controls the provider client's retry policy. The adapter
// itself never retries; whatever the client surfaces is surfaced as-is.
type RetryConfig struct {
	// MaxAttempts caps total attempts including the first (0 = SDK default)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// MaxBackoff caps the delay between attempts (0 = SDK default)
	MaxBackoff time.Duration `yaml:"max_backoff" json:"max_backoff"`
	// Disabled turns client-side retries off entirely
	Disabled bool `yaml:"disabled" json:"disabled"`
}

// StoreConfig holds the connection parameters for a remote object store.
// The zero value is usable: everything falls through to ambient defaults.
type StoreConfig struct {
	// Name identifies the store instance in logs and metrics
	Name string `yaml:"name" json:"name"`

	// Credentials is the optional static credential material
	Credentials Credentials `yaml:"credentials" json:"credentials"`

	// Region is the explicit region; empty falls through to the ambient
	// default and finally to the hardcoded fallback region
	Region string `yaml:"region" json:"region"`

	// Endpoint overrides the provider endpoint, for S3-compatible targets
	// such as MinIO or Ceph
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// UsePathStyle forces path-style addressing, usually required together
	// with an endpoint override
	UsePathStyle bool `yaml:"use_path_style" json:"use_path_style"`

	// Retry configures the provider client's retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// OperationTimeout bounds listing and upload calls
	OperationTimeout time.Duration `yaml:"operation_timeout" json:"operation_timeout"`

	// ReadTimeout is the bounded-wait ceiling for a single range read
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`
}

// NewStoreConfig returns a StoreConfig with default timeouts applied.
func NewStoreConfig(name string) StoreConfig {
	return StoreConfig{
		Name:             name,
		OperationTimeout: DefaultOperationTimeout,
		ReadTimeout:      DefaultReadTimeout,
	}
}

// WithDefaults returns a copy with zero timeouts replaced by defaults.
func (c StoreConfig) WithDefaults() StoreConfig {
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = DefaultOperationTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return c
}

// Validate checks the configuration for inconsistencies.
func (c StoreConfig) Validate() error {
	if c.Credentials.AccessKeyID != "" && c.Credentials.SecretAccessKey == "" {
		return errors.New(errors.ErrorTypeConfig, "access key supplied without secret key")
	}
	if c.Credentials.AccessKeyID == "" && c.Credentials.SecretAccessKey != "" {
		return errors.New(errors.ErrorTypeConfig, "secret key supplied without access key")
	}
	if c.Retry.MaxAttempts < 0 {
		return errors.New(errors.ErrorTypeConfig, "retry max_attempts must not be negative")
	}
	if c.OperationTimeout < 0 || c.ReadTimeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "timeouts must not be negative")
	}
	return nil
}
