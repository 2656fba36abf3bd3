// Package config holds process-wide configuration for the storage engine:
// where layer files live on disk and how values are compressed.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/em3ndez/neon/pkg/ident"
)

const (
	// CurrentConfigVersion is the version of the configuration format
	CurrentConfigVersion = 1

	// DefaultCompressionLevel is the zstd level used for value compression
	// when the configuration does not override it.
	DefaultCompressionLevel = 3

	// MaxCompressionLevel is the highest zstd level accepted
	MaxCompressionLevel = 19
)

var (
	// ErrInvalidConfig indicates a configuration that fails validation
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the process-wide configuration.
type Config struct {
	Version int `json:"version"`

	// DataDir is the working directory holding tenant data
	DataDir string `json:"data_dir"`

	// CompressionLevel is the zstd level for value compression; zero or
	// negative disables compression
	CompressionLevel int `json:"compression_level"`

	mu sync.RWMutex
}

// NewDefaultConfig creates a Config with recommended default values.
func NewDefaultConfig(dataDir string) *Config {
	return &Config{
		Version:          CurrentConfigVersion,
		DataDir:          dataDir,
		CompressionLevel: DefaultCompressionLevel,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Version <= 0 {
		return fmt.Errorf("%w: invalid version %d", ErrInvalidConfig, c.Version)
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: data directory not specified", ErrInvalidConfig)
	}
	if c.CompressionLevel > MaxCompressionLevel {
		return fmt.Errorf("%w: compression level %d above maximum %d",
			ErrInvalidConfig, c.CompressionLevel, MaxCompressionLevel)
	}
	return nil
}

// GetCompressionLevel returns the configured zstd level; zero or negative
// means compression is disabled.
func (c *Config) GetCompressionLevel() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CompressionLevel
}

// TenantPath returns the directory holding a tenant's data.
func (c *Config) TenantPath(tenantID ident.TenantID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return filepath.Join(c.DataDir, "tenants", tenantID.String())
}

// TimelinePath returns the directory holding a timeline's layer files.
func (c *Config) TimelinePath(tenantID ident.TenantID, timelineID ident.TimelineID) string {
	return filepath.Join(c.TenantPath(tenantID), "timelines", timelineID.String())
}
