package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "slotbooking", cfg.DB.Name)
	assert.Equal(t, int32(20), cfg.DB.MaxConns)
	assert.True(t, cfg.DB.Migrate)
	assert.Equal(t, 3, cfg.Register.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Register.LimiterIdle)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "slot-booking", cfg.Tracing.ServiceName)
	assert.Empty(t, cfg.Tracing.Endpoint)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_MIGRATE", "false")
	t.Setenv("REGISTER_MAX_ATTEMPTS", "5")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.False(t, cfg.DB.Migrate)
	assert.Equal(t, 5, cfg.Register.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestLoad_RejectsZeroAttempts(t *testing.T) {
	t.Setenv("REGISTER_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestDB_URLs(t *testing.T) {
	db := DB{Host: "h", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", db.DSN())
	assert.Equal(t, "pgx5://u:p@h:5432/n?sslmode=disable", db.MigrateURL())
}
