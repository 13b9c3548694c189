package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "JOBTRACKER"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabaseDriver    = DriverSQLite
	defaultDatabaseDSN       = "jobtracker.db"
	defaultTokenTTL          = 30 * 24 * time.Hour
	defaultBcryptCost        = 10
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultStatsWeeks        = 4
	defaultStatsMonths       = 6
	defaultStatsTimezone     = "UTC"
	defaultAuthPerMinute     = 20
	defaultAuthBurst         = 5
	defaultAllowedOriginList = "http://localhost:3000"

	// DriverSQLite selects the embedded pure-Go SQLite driver.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the PostgreSQL driver.
	DriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabaseDriver    string
	DatabaseDSN       string
	SigningSecret     string
	TokenTTL          time.Duration
	BcryptCost        int
	LogLevel          string
	LogFormat         string
	AllowedOrigins    []string
	StatsWeeks        int
	StatsMonths       int
	StatsLocation     *time.Location
	AuthRatePerMinute int
	AuthRateBurst     int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("auth.bcrypt_cost", defaultBcryptCost)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("cors.allowed_origins", defaultAllowedOriginList)
	configViper.SetDefault("stats.weeks", defaultStatsWeeks)
	configViper.SetDefault("stats.months", defaultStatsMonths)
	configViper.SetDefault("stats.timezone", defaultStatsTimezone)
	configViper.SetDefault("ratelimit.auth_per_minute", defaultAuthPerMinute)
	configViper.SetDefault("ratelimit.auth_burst", defaultAuthBurst)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenTTL:          configViper.GetDuration("auth.token_ttl"),
		BcryptCost:        configViper.GetInt("auth.bcrypt_cost"),
		LogLevel:          configViper.GetString("log.level"),
		LogFormat:         strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		AllowedOrigins:    splitList(configViper.GetString("cors.allowed_origins")),
		StatsWeeks:        configViper.GetInt("stats.weeks"),
		StatsMonths:       configViper.GetInt("stats.months"),
		AuthRatePerMinute: configViper.GetInt("ratelimit.auth_per_minute"),
		AuthRateBurst:     configViper.GetInt("ratelimit.auth_burst"),
	}

	timezone := strings.TrimSpace(configViper.GetString("stats.timezone"))
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return AppConfig{}, fmt.Errorf("stats.timezone %q is invalid: %w", timezone, err)
	}
	cfg.StatsLocation = location

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.DatabaseDriver != DriverSQLite && c.DatabaseDriver != DriverPostgres {
		return fmt.Errorf("database.driver must be %q or %q", DriverSQLite, DriverPostgres)
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log.format must be json or console")
	}
	if c.StatsWeeks < 0 || c.StatsMonths < 0 {
		return fmt.Errorf("stats.weeks and stats.months must not be negative")
	}
	if c.AuthRatePerMinute <= 0 || c.AuthRateBurst <= 0 {
		return fmt.Errorf("ratelimit.auth_per_minute and ratelimit.auth_burst must be positive")
	}
	return nil
}

// splitList accepts comma or whitespace separated values.
func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	values := make([]string, 0, len(fields))
	for _, field := range fields {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
