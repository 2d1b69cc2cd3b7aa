package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:            "3000",
		Env:             "development",
		DBDriver:        "postgres",
		DBPassword:      "password",
		DBSSLMode:       "disable",
		UploadBackend:   "local",
		UploadDir:       "./data",
		UploadMaxSizeMB: 10,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"Development defaults", func(c *Config) {}, false},
		{"Missing port", func(c *Config) { c.Port = "" }, true},
		{"Unknown driver", func(c *Config) { c.DBDriver = "oracle" }, true},
		{"SQLite in development", func(c *Config) { c.DBDriver = "sqlite" }, false},
		{"SQLite in production", func(c *Config) {
			c.Env = "production"
			c.DBDriver = "sqlite"
			c.DBPassword = "s3cure"
		}, true},
		{"Production default password", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "require"
		}, true},
		{"Production without SSL", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "s3cure"
		}, true},
		{"Production MySQL ignores sslmode", func(c *Config) {
			c.Env = "production"
			c.DBDriver = "mysql"
			c.DBPassword = "s3cure"
		}, false},
		{"S3 without bucket", func(c *Config) { c.UploadBackend = "s3" }, true},
		{"S3 with bucket", func(c *Config) {
			c.UploadBackend = "s3"
			c.S3Bucket = "cozytiny-media"
		}, false},
		{"Unknown upload backend", func(c *Config) { c.UploadBackend = "ftp" }, true},
		{"Zero upload size", func(c *Config) { c.UploadMaxSizeMB = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("CATEGORIES", "Tiny Homes, Vans ,")
	t.Setenv("SITE_URL", "https://cozytiny.com/")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "https://cozytiny.com", c.SiteURL)
	assert.Equal(t, []string{"Tiny Homes", "Vans"}, c.CategoryList())
}

func TestConfig_CategoryListEmpty(t *testing.T) {
	c := validConfig()
	assert.Nil(t, c.CategoryList())
}

func TestIsProdLike(t *testing.T) {
	assert.True(t, IsProdLike("production"))
	assert.True(t, IsProdLike(" Staging "))
	assert.False(t, IsProdLike("development"))
	assert.False(t, IsProdLike("test"))
}
