package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
auth:
  domain: cidc.auth0.com
  client_id: abc
gcs:
  upload_bucket: uploads
`))
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Auth.FetchTimeout)
	assert.Zero(t, cfg.Auth.JWKSCacheTTL)
	assert.Equal(t, "roles/storage.objectCreator", cfg.GCS.UploadRole)
	assert.Equal(t, "https://cidc.auth0.com/", cfg.Issuer())
	assert.Equal(t, "https://cidc.auth0.com/.well-known/jwks.json", cfg.JWKSEndpoint())
	assert.False(t, cfg.Upload.RevokeWhenIdle)
}

func TestLoad_Sample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "etc", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Auth.JWKSCacheTTL)
	assert.Equal(t, "cidc-uploads-staging", cfg.GCS.UploadBucket)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "auth:\n  domain: x\n"))
	assert.ErrorContains(t, err, "client_id")

	_, err = Load(writeConfig(t, "auth:\n  domain: x\n  client_id: y\n"))
	assert.ErrorContains(t, err, "upload_bucket")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestJWKSOverride(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
auth:
  jwks_url: http://localhost:9999/keys
  client_id: abc
gcs:
  upload_bucket: uploads
`))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/keys", cfg.JWKSEndpoint())
}
