package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LLM_BASE_URL", "")

	cfg := Load()
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.NotEmpty(t, cfg.DatabaseURL)
	assert.NotEmpty(t, cfg.LLMBaseURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://steward@localhost:5432/steward?sslmode=disable")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Contains(t, cfg.DatabaseURL, "steward")
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoadProfileDefaultsWhenPathEmpty(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.EqualValues(t, 5, p.Billing.MinValue)
	assert.Equal(t, "USD", p.Billing.Currency)
	assert.True(t, p.Billing.IntegrationActive)
	assert.Equal(t, 15*time.Minute, p.PreviewTTL())
	assert.Equal(t, 24*time.Hour, p.IdempotencyTTL())
}

func TestLoadProfileFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: acme-field-services
billing:
  min_value: 100
  max_value: 1000000
  currency: EUR
  integration_active: true
preview_ttl_minutes: 30
history_window: 10
quotas:
  expression: "limit < 0 || count < limit"
`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "acme-field-services", p.Name)
	assert.EqualValues(t, 100, p.Billing.MinValue)
	assert.Equal(t, "EUR", p.Billing.Currency)
	assert.Equal(t, 30*time.Minute, p.PreviewTTL())
	assert.Equal(t, 10, p.HistoryWindow)
	assert.NotEmpty(t, p.Quotas.Expression)
}

func TestLoadProfileKnowledgeDocs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
knowledge:
  - title: Service area
    content: We serve the metro area only, no rural callouts.
  - title: Deposit policy
    content: Quotes over 50000 require a 20 percent deposit.
    source: handbook
`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	require.Len(t, p.Knowledge, 2)
	assert.Equal(t, "Service area", p.Knowledge[0].Title)
	assert.Equal(t, "handbook", p.Knowledge[1].Source)
}

func TestLoadProfileRejectsInvertedBounds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
billing:
  min_value: 500
  max_value: 100
`), 0o600))

	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_value exceeds max_value")
}
