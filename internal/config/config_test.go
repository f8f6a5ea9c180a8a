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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TEST_BOOKING_URL", "http://backend.local")
	path := writeConfig(t, `
backend:
  base_url: "${TEST_BOOKING_URL}"
  practitioner_id: "p-1"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend.local", cfg.Backend.BaseURL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/api/client-errors", cfg.Backend.ClientErrorsPath)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout())
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout())
	assert.Equal(t, 24*time.Hour, cfg.ErrorMaxAge())
	assert.Equal(t, 100, cfg.Errors.Capacity)
	assert.False(t, cfg.PaymentsEnabled())

	days, err := cfg.BusinessDays()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}, days)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoadOverrides(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "errors.db")
	path := writeConfig(t, `
backend:
  base_url: "http://backend.local"
  practitioner_id: "p-1"
  timeout_seconds: 3
booking:
  timezone: "UTC"
  business_days: [Monday, WED, fri, mon]
  session_timeout_minutes: 5
stripe:
  publishable_key: pk_test
  secret_key: sk_test
errors:
  database_path: "`+dbPath+`"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.BackendTimeout())
	assert.Equal(t, 5*time.Minute, cfg.SessionTimeout())
	assert.True(t, cfg.PaymentsEnabled())

	days, err := cfg.BusinessDays()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, days)

	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing base url": `
backend:
  practitioner_id: "p-1"
`,
		"bad timezone": `
backend: {base_url: "http://x", practitioner_id: "p"}
booking: {timezone: "Mars/Olympus"}
`,
		"bad weekday": `
backend: {base_url: "http://x", practitioner_id: "p"}
booking: {business_days: [funday]}
`,
		"telegram without token": `
backend: {base_url: "http://x", practitioner_id: "p"}
telegram: {enabled: true}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
