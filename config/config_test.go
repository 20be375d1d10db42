package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"

	"github.com/validbr/pdfval/config"
	"github.com/validbr/pdfval/revocation"
)

func TestConfig(t *testing.T) {
	const configContent = `
policy = "all"
workers = 8
anchors = ["/etc/pdfval/ac-raiz.pem", "/etc/pdfval/ac-intermediaria.pem"]

[scan]
enabled = true
max_file_size = 52428800
max_pages = 500

[revocation]
http = true
timeout_seconds = 30

[log]
level = "debug"
json = true
`

	var c config.Config
	if _, err := toml.Decode(configContent, &c); err != nil {
		t.Error(err)
	}

	// Root
	assert.Equal(t, "all", c.Policy)
	assert.Equal(t, 8, c.Workers)
	assert.Equal(t, []string{"/etc/pdfval/ac-raiz.pem", "/etc/pdfval/ac-intermediaria.pem"}, c.Anchors)

	// Scan
	assert.True(t, c.Scan.Enabled)
	assert.Equal(t, int64(52428800), c.Scan.MaxFileSize)
	assert.Equal(t, 500, c.Scan.MaxPages)

	// Revocation
	assert.True(t, c.Revocation.HTTP)
	assert.Equal(t, 30, c.Revocation.TimeoutSeconds)

	// Log
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Log.JSON)
}

func TestDefault(t *testing.T) {
	c := config.Default()

	assert.Equal(t, "any", c.Policy)
	assert.Equal(t, 1, c.Workers)
	assert.Empty(t, c.Anchors)
	assert.False(t, c.Scan.Enabled)
	assert.Equal(t, int64(100<<20), c.Scan.MaxFileSize)
	assert.Equal(t, 1000, c.Scan.MaxPages)
	assert.False(t, c.Revocation.HTTP)
	assert.Equal(t, 10, c.Revocation.TimeoutSeconds)
	assert.Equal(t, "info", c.Log.Level)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfval.conf")
	content := []byte("policy = \"all\"\n\n[log]\nlevel = \"warn\"\n")
	assert.NoError(t, os.WriteFile(path, content, 0o600))

	c, err := config.Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "all", c.Policy)
	assert.Equal(t, "warn", c.Log.Level)

	// Unset fields fall back to the defaults.
	assert.Equal(t, 1, c.Workers)
	assert.Equal(t, 1000, c.Scan.MaxPages)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nao-existe.conf"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file is missing")
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfval.conf")
	assert.NoError(t, os.WriteFile(path, []byte("policy = [unclosed"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadInvalidPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfval.conf")
	assert.NoError(t, os.WriteFile(path, []byte("policy = \"sometimes\"\n"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config is not valid")
}

func TestValidation(t *testing.T) {
	const configContent = `
policy = "maybe"
`

	var c config.Config
	if _, err := toml.Decode(configContent, &c); err != nil {
		t.Error(err)
	}

	err := c.ValidateFields()
	assert.NotNil(t, err)
}

func TestLimits(t *testing.T) {
	c := config.Default()
	c.Scan.MaxFileSize = 1024
	c.Scan.MaxPages = 2

	limits := c.Limits()
	assert.Equal(t, int64(1024), limits.MaxFileSize)
	assert.Equal(t, 2, limits.MaxPages)
}

func TestChecker(t *testing.T) {
	c := config.Default()
	assert.Nil(t, c.Checker())

	c.Revocation.HTTP = true
	c.Revocation.TimeoutSeconds = 30
	checker := c.Checker()
	assert.NotNil(t, checker)

	httpChecker, ok := checker.(*revocation.HTTPChecker)
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, httpChecker.Timeout)
}

func TestBuildLogger(t *testing.T) {
	c := config.Default()
	log, err := c.BuildLogger()
	assert.NoError(t, err)
	assert.NotNil(t, log)

	c.Log.JSON = true
	c.Log.Level = "error"
	log, err = c.BuildLogger()
	assert.NoError(t, err)
	assert.NotNil(t, log)

	c.Log.Level = "loudest"
	_, err = c.BuildLogger()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
