package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: error\nquery:\n  include_date_filter: false\n"), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryCommand(t *testing.T) {
	out, err := run(t, "query", "--config", writeConfig(t), "--id", "TX1", "--date", "2024-03-15")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "let relevant_traces = traces\n"))
	assert.Contains(t, out, `message has "-TX1-"`)
	assert.NotContains(t, out, `message has "-2024-03-15"`)
}

func TestQueryCommandBadDate(t *testing.T) {
	_, err := run(t, "query", "--config", writeConfig(t), "--id", "TX1", "--date", "03/15/2024")
	assert.Error(t, err)
}

func TestQueryCommandFutureDate(t *testing.T) {
	future := time.Now().AddDate(0, 0, 2).Format("2006-01-02")
	_, err := run(t, "query", "--config", writeConfig(t), "--id", "TX1", "--date", future)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "future")
}

func TestDownloadCommandRequiresFlags(t *testing.T) {
	_, err := run(t, "download", "--config", writeConfig(t), "--id", "TX1")
	assert.Error(t, err)
}

func TestHashSecretCommand(t *testing.T) {
	out, err := run(t, "hash-secret", "s3cret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("s3cret")))
}
