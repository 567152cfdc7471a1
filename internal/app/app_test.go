package app

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracepayload/internal/assembler"
	"tracepayload/internal/config"
	"tracepayload/internal/query"
)

func TestQueryOptions(t *testing.T) {
	opts := QueryOptions(config.QueryConfig{IncludeDateFilter: true})
	assert.Equal(t, query.DefaultOptions(), opts)

	opts = QueryOptions(config.QueryConfig{
		Table:       "AppTraces",
		ServiceRole: "checkout",
	})
	assert.Equal(t, "AppTraces", opts.Table)
	assert.Equal(t, query.DefaultRoleColumn, opts.RoleColumn)
	assert.Equal(t, []query.Identity{{Op: query.OpEquals, Value: "checkout"}}, opts.Identities)
	assert.False(t, opts.IncludeDateFilter)
}

func TestAssemblerOptions(t *testing.T) {
	opts, err := AssemblerOptions(config.AssemblyConfig{PairingOrder: "timestamp", OrphanPolicy: "fail"})
	require.NoError(t, err)
	assert.Equal(t, assembler.Options{Order: assembler.TimestampOrder, Orphans: assembler.OrphanFail}, opts)

	_, err = AssemblerOptions(config.AssemblyConfig{PairingOrder: "random"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	cfg := &config.Config{
		AppInsights: config.AppInsightsConfig{ApplicationID: "app", Timeout: "5s"},
		Auth:        config.AuthConfig{SecretKey: "s3cret"},
		Export:      config.ExportConfig{Enabled: true, OutputDir: t.TempDir()},
		DB:          config.DBConfig{Enabled: true, Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "exports.db")},
	}

	a, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Service)
	assert.NotNil(t, a.DB)
	assert.True(t, a.Gate.Authorize("s3cret"))
}

func TestNewInvalidAssembly(t *testing.T) {
	_, err := New(&config.Config{Assembly: config.AssemblyConfig{OrphanPolicy: "panic"}}, zerolog.Nop())
	assert.Error(t, err)
}
