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

	assert.Equal(t, "stockledger", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Reservation.DefaultTTL)
	assert.Equal(t, time.Minute, cfg.Reservation.SweepInterval)
	assert.Equal(t, 500, cfg.Reservation.SweepBatchSize)
	assert.False(t, cfg.App.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LEDGER_APP_PORT", "9090")
	t.Setenv("LEDGER_DATABASE_DRIVER", "sqlite")
	t.Setenv("LEDGER_DATABASE_PATH", "/tmp/ledger.db")
	t.Setenv("LEDGER_RESERVATION_DEFAULT_TTL", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/ledger.db", cfg.Database.DSN())
	assert.Equal(t, 15*time.Minute, cfg.Reservation.DefaultTTL)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("LEDGER_DATABASE_DRIVER", "oracle")

	_, err := Load()
	assert.ErrorContains(t, err, "database.driver")
}

func TestLoad_ProductionRequiresHardenedDatabase(t *testing.T) {
	t.Setenv("LEDGER_APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("LEDGER_DATABASE_PASSWORD", "secret")
	t.Setenv("LEDGER_DATABASE_SSLMODE", "require")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.App.IsProduction())
}

func TestDatabaseConfig_DSNEscapesCredentials(t *testing.T) {
	d := DatabaseConfig{
		Driver:   "postgres",
		Host:     "db.internal",
		Port:     5432,
		User:     "ledger",
		Password: "p@ss w/rd",
		DBName:   "stockledger",
		SSLMode:  "require",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "p%40ss%20w%2Frd")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}
