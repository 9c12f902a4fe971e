package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
api:
  environment: test
  port: "9090"
  jwt_signing_key: "0123456789abcdef0123"
store:
  driver: memory
engine:
  retry_attempts: 5
  lock_timeout: 250ms
  reservation_ttl: 10m
payment:
  provider: simulated
qr:
  secret: "qr-secret-0123456789"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	conf, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "9090", conf.API.Port)
	assert.Equal(t, "memory", conf.Store.Driver)
	assert.Equal(t, 5, conf.Engine.RetryAttempts)
	assert.Equal(t, 250*time.Millisecond, conf.Engine.LockTimeout)
	assert.Equal(t, 10*time.Minute, conf.Engine.ReservationTTL)
	assert.Equal(t, 8, conf.Engine.ScanConcurrency)
	assert.Equal(t, "hadathub", conf.Postgres.DB)
	assert.False(t, conf.Redis.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HADATHUB_ENGINE_RETRY_ATTEMPTS", "9")
	t.Setenv("HADATHUB_STORE_DRIVER", "postgres")

	conf, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, 9, conf.Engine.RetryAttempts)
	assert.Equal(t, "postgres", conf.Store.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"HADATHUB_STORE_DRIVER": "sqlite"}},
		{"stripe without key", map[string]string{"HADATHUB_PAYMENT_PROVIDER": "stripe"}},
		{"short qr secret", map[string]string{"HADATHUB_QR_SECRET": "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, sample))
			require.Error(t, err)
		})
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	c := &PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", DB: "x"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=x sslmode=disable", c.DSN())
}
