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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "app:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "0.0.0.0", cfg.App.Host)
	assert.Equal(t, "traces", cfg.Query.Table)
	assert.Equal(t, "brierley_service", cfg.Query.ServiceRole)
	assert.True(t, cfg.Query.IncludeDateFilter)
	assert.Equal(t, "arrival", cfg.Assembly.PairingOrder)
	assert.Equal(t, "skip", cfg.Assembly.OrphanPolicy)
	assert.Equal(t, 30*time.Second, cfg.AppInsights.GetTimeoutDuration())
}

func TestLoadFileSecretsFromEnv(t *testing.T) {
	t.Setenv("TEST_AI_KEY", "ai-key")
	t.Setenv("TEST_SECRET", "open-sesame")

	cfg, err := LoadFile(writeConfig(t, `
appinsights:
  application_id: app-1
  api_key_env: TEST_AI_KEY
  timeout: 5s
auth:
  secret_key_env: TEST_SECRET
`))
	require.NoError(t, err)

	assert.Equal(t, "app-1", cfg.AppInsights.ApplicationID)
	assert.Equal(t, "ai-key", cfg.AppInsights.APIKey)
	assert.Equal(t, "open-sesame", cfg.Auth.SecretKey)
	assert.Equal(t, 5*time.Second, cfg.AppInsights.GetTimeoutDuration())
}

func TestLoadFileEnvOverride(t *testing.T) {
	t.Setenv("ASSEMBLY_PAIRING_ORDER", "timestamp")

	cfg, err := LoadFile(writeConfig(t, "assembly:\n  pairing_order: arrival\n"))
	require.NoError(t, err)
	assert.Equal(t, "timestamp", cfg.Assembly.PairingOrder)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"timestamp order", Config{Assembly: AssemblyConfig{PairingOrder: "timestamp", OrphanPolicy: "fail"}}, false},
		{"bad order", Config{Assembly: AssemblyConfig{PairingOrder: "random"}}, true},
		{"bad orphan policy", Config{Assembly: AssemblyConfig{OrphanPolicy: "explode"}}, true},
		{"postgres", Config{DB: DBConfig{Enabled: true, Driver: "postgres"}}, false},
		{"bad driver", Config{DB: DBConfig{Enabled: true, Driver: "mysql"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
