package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := Load(configViper)
	require.NoError(t, err)
	assert.Equal(t, defaultHTTPAddress, cfg.HTTPAddress)
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, defaultDatabaseDSN, cfg.DatabaseDSN)
	assert.Equal(t, 720*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 4, cfg.StatsWeeks)
	assert.Equal(t, 6, cfg.StatsMonths)
	assert.Equal(t, time.UTC, cfg.StatsLocation)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("JOBTRACKER_AUTH_SIGNING_SECRET", "from-env")
	t.Setenv("JOBTRACKER_AUTH_TOKEN_TTL", "2h")
	t.Setenv("JOBTRACKER_DATABASE_DRIVER", "Postgres")
	t.Setenv("JOBTRACKER_DATABASE_DSN", "host=localhost dbname=jobs")
	t.Setenv("JOBTRACKER_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("JOBTRACKER_STATS_TIMEZONE", "Europe/Berlin")

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SigningSecret)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "Europe/Berlin", cfg.StatsLocation.String())
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value any
	}{
		{name: "missing secret", key: "auth.signing_secret", value: ""},
		{name: "unknown driver", key: "database.driver", value: "mysql"},
		{name: "empty dsn", key: "database.dsn", value: " "},
		{name: "bad timezone", key: "stats.timezone", value: "Mars/Olympus"},
		{name: "bad log format", key: "log.format", value: "xml"},
		{name: "zero rate", key: "ratelimit.auth_per_minute", value: 0},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set("auth.signing_secret", "secret")
			configViper.Set(testCase.key, testCase.value)
			_, err := Load(configViper)
			assert.Error(t, err)
		})
	}
}
