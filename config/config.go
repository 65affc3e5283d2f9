package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the service looks for its configuration when no
// --config flag is given.
const DefaultPath = "./etc/config.yaml"

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Postgres struct {
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		DBName   string `yaml:"dbname"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"sslmode"`
		TimeZone string `yaml:"TimeZone"`
	} `yaml:"postgres"`
	Auth struct {
		// Domain is the identity provider domain, e.g. "cidc.auth0.com".
		Domain   string `yaml:"domain"`
		ClientID string `yaml:"client_id"`
		// JWKSURL overrides https://{domain}/.well-known/jwks.json
		JWKSURL      string        `yaml:"jwks_url"`
		JWKSCacheTTL time.Duration `yaml:"jwks_cache_ttl"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		Leeway       time.Duration `yaml:"leeway"`
	} `yaml:"auth"`
	GCS struct {
		Project      string        `yaml:"project"`
		UploadBucket string        `yaml:"upload_bucket"`
		UploadRole   string        `yaml:"upload_role"`
		UploadTopic  string        `yaml:"upload_topic"`
		IAMTimeout   time.Duration `yaml:"iam_timeout"`
	} `yaml:"gcs"`
	Templates struct {
		Dir string `yaml:"dir"`
	} `yaml:"templates"`
	Upload struct {
		// RevokeWhenIdle keeps a user's upload grant while they still own
		// jobs in the started state.
		RevokeWhenIdle bool `yaml:"revoke_when_idle"`
	} `yaml:"upload"`
	MinCLIVersion string `yaml:"min_cli_version"`
	Log           struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
}

// Issuer is the expected "iss" claim of identity tokens.
func (c *Config) Issuer() string {
	return fmt.Sprintf("https://%s/", c.Auth.Domain)
}

// JWKSEndpoint is the URL of the issuer's published key set.
func (c *Config) JWKSEndpoint() string {
	if c.Auth.JWKSURL != "" {
		return c.Auth.JWKSURL
	}
	return fmt.Sprintf("https://%s/.well-known/jwks.json", c.Auth.Domain)
}

// Load reads the YAML configuration at filePath and fills in defaults.
func Load(filePath string) (*Config, error) {
	config := &Config{}
	if err := readConfig(filePath, config); err != nil {
		return nil, fmt.Errorf("read config %s: %w", filePath, err)
	}
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func readConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Postgres.Port == "" {
		c.Postgres.Port = "5432"
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "disable"
	}
	if c.Postgres.TimeZone == "" {
		c.Postgres.TimeZone = "UTC"
	}
	if c.Auth.FetchTimeout == 0 {
		c.Auth.FetchTimeout = 5 * time.Second
	}
	if c.GCS.UploadRole == "" {
		c.GCS.UploadRole = "roles/storage.objectCreator"
	}
	if c.GCS.UploadTopic == "" {
		c.GCS.UploadTopic = "uploads"
	}
	if c.GCS.IAMTimeout == 0 {
		c.GCS.IAMTimeout = 10 * time.Second
	}
	if c.Templates.Dir == "" {
		c.Templates.Dir = "./etc/templates"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	if c.Auth.Domain == "" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("config: auth.domain is required")
	}
	if c.Auth.ClientID == "" {
		return fmt.Errorf("config: auth.client_id is required")
	}
	if c.GCS.UploadBucket == "" {
		return fmt.Errorf("config: gcs.upload_bucket is required")
	}
	if c.Auth.JWKSCacheTTL < 0 {
		return fmt.Errorf("config: auth.jwks_cache_ttl must be non-negative")
	}
	return nil
}
