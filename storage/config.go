package storage

import (
	"fmt"

	"github.com/kbukum/captiongen/util"
)

// Backend names.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Defaults.
const (
	DefaultBasePath    = "./data"
	DefaultMaxFileSize = "100MB"
)

// Config holds storage configuration.
type Config struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"oneof=local s3"`
	// BasePath is the root directory; it is locked while the service runs.
	// With the s3 provider it only holds scratch files.
	BasePath    string   `yaml:"base_path" mapstructure:"base_path" validate:"required"`
	MaxFileSize string   `yaml:"max_file_size" mapstructure:"max_file_size"`
	S3          S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config configures the S3 backend. Endpoint points it at an
// S3-compatible server such as MinIO.
type S3Config struct {
	Bucket         string `yaml:"bucket" mapstructure:"bucket"`
	Region         string `yaml:"region" mapstructure:"region"`
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKey      string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey      string `yaml:"secret_key" mapstructure:"secret_key"`
	ForcePathStyle bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// DefaultRegion is used when storage.s3.region is unset.
const DefaultRegion = "us-east-1"

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.MaxFileSize == "" {
		c.MaxFileSize = DefaultMaxFileSize
	}
	if c.Provider == ProviderS3 && c.S3.Region == "" {
		c.S3.Region = DefaultRegion
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("storage.base_path is required")
	}
	if _, err := c.MaxBytes(); err != nil {
		return err
	}
	if c.Provider == ProviderS3 {
		if c.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			return fmt.Errorf("storage.s3.access_key and storage.s3.secret_key must be set together")
		}
	}
	return nil
}

// MaxBytes parses MaxFileSize.
func (c *Config) MaxBytes() (int64, error) {
	n, err := util.ParseSize(c.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("storage.max_file_size: %w", err)
	}
	return n, nil
}
