package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
storage:
  driver: memory
jwt:
  secret: `+testSecret+`
razorpay:
  key_id: rzp_test_key
  currency: USD
outbox:
  poll_interval: 500ms
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "rzp_test_key", cfg.Razorpay.KeyID)
	assert.Equal(t, "USD", cfg.Razorpay.Currency)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, "hire-api", cfg.JWT.Issuer)
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: `+testSecret+`
database:
  password: from-file
`)
	t.Setenv("HIRE_SERVER_PORT", "7070")
	t.Setenv("HIRE_DATABASE_PASSWORD", "from-env")
	t.Setenv("HIRE_RAZORPAY_KEY_SECRET", "rzp_secret")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "rzp_secret", cfg.Razorpay.KeySecret)
}

func TestValidateRejectsWeakSetup(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: short
storage:
  driver: mongo
`)

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
	assert.Contains(t, err.Error(), "storage.driver")
}

func TestConversions(t *testing.T) {
	cfg := Config{
		Outbox: OutboxConfig{BatchSize: 10, PollInterval: time.Second, RetryAttempts: 3, RetryDelay: time.Second, Lease: time.Minute},
		SMTP:   SMTPConfig{Host: "smtp.test", Port: 2525, From: "no-reply@hire.test"},
	}

	w := cfg.Outbox.ToWorkerConfig()
	assert.Equal(t, 10, w.BatchSize)
	assert.Equal(t, time.Minute, w.Lease)

	s := cfg.SMTP.ToDelivererConfig()
	assert.Equal(t, "smtp.test", s.Host)
	assert.Equal(t, 2525, s.Port)
}
