// Package config loads validator settings from a TOML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/asaskevich/govalidator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/validbr/pdfval/revocation"
	"github.com/validbr/pdfval/scanner"
)

func init() {
	govalidator.SetFieldsRequiredByDefault(true)
}

// DefaultLocation is where the config file is looked for when no path is
// given.
var DefaultLocation = "./pdfval.conf"

// Config is the root of the validator configuration.
type Config struct {
	// Policy aggregates per-signature outcomes: "any" accepts a document
	// with at least one valid signature, "all" requires every one.
	Policy string `toml:"policy" valid:"in(any|all),optional"`

	// Workers bounds how many signatures are validated concurrently.
	Workers int `toml:"workers" valid:"range(0|64),optional"`

	// Anchors are paths to PEM files with trusted issuing certificates.
	Anchors []string `toml:"anchors" valid:"-"`

	Scan       ScanConfig       `toml:"scan" valid:"-"`
	Revocation RevocationConfig `toml:"revocation" valid:"-"`
	Log        LogConfig        `toml:"log" valid:"-"`
}

// ScanConfig controls the pre-validation safety scan.
type ScanConfig struct {
	Enabled     bool  `toml:"enabled" valid:"-"`
	MaxFileSize int64 `toml:"max_file_size" valid:"-"`
	MaxPages    int   `toml:"max_pages" valid:"range(0|100000),optional"`
}

// RevocationConfig controls live revocation lookups. Disabled by
// default; embedded revocation material is always used.
type RevocationConfig struct {
	HTTP           bool `toml:"http" valid:"-"`
	TimeoutSeconds int  `toml:"timeout_seconds" valid:"range(0|300),optional"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `toml:"level" valid:"in(debug|info|warn|error),optional"`
	JSON  bool   `toml:"json" valid:"-"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file is missing: %w", err)
	}

	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.ValidateFields(); err != nil {
		return nil, fmt.Errorf("config is not valid: %w", err)
	}
	return &c, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// ValidateFields validates all the fields of the config.
func (c *Config) ValidateFields() error {
	_, err := govalidator.ValidateStruct(c)
	return err
}

func (c *Config) applyDefaults() {
	if c.Policy == "" {
		c.Policy = "any"
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.Scan.MaxFileSize == 0 {
		c.Scan.MaxFileSize = 100 << 20
	}
	if c.Scan.MaxPages == 0 {
		c.Scan.MaxPages = 1000
	}
	if c.Revocation.TimeoutSeconds == 0 {
		c.Revocation.TimeoutSeconds = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Limits converts the scan section into scanner limits.
func (c *Config) Limits() scanner.Limits {
	return scanner.Limits{
		MaxFileSize: c.Scan.MaxFileSize,
		MaxPages:    c.Scan.MaxPages,
	}
}

// Checker builds the revocation checker the config asks for, nil when
// live lookups are disabled.
func (c *Config) Checker() revocation.Checker {
	if !c.Revocation.HTTP {
		return nil
	}
	return &revocation.HTTPChecker{
		Timeout: time.Duration(c.Revocation.TimeoutSeconds) * time.Second,
	}
}

// BuildLogger constructs a zap logger per the log section: JSON or
// console encoding at the configured level.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	cfg := zap.NewProductionConfig()
	if !c.Log.JSON {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
