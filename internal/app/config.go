package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the FinFortress backend.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Profile  ProfileConfig  `mapstructure:"profile"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles sensitive endpoints. The challenge limits are
// deliberately tighter than the global ones: guessing PINs and codes is an
// online attack.
type RateLimitConfig struct {
	Requests          int           `mapstructure:"requests"`
	Window            time.Duration `mapstructure:"window"`
	ChallengeRequests int           `mapstructure:"challenge_requests"`
	ChallengeWindow   time.Duration `mapstructure:"challenge_window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ProfileConfig locates the security profile store. When MongoDB is
// disabled the profiles live in process memory, which only suits tests
// and single-node evaluation.
type ProfileConfig struct {
	Mongo MongoConfig `mapstructure:"mongo"`
}

// MongoConfig holds MongoDB connection options.
type MongoConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT     JWTSettings     `mapstructure:"jwt"`
	Session SessionSettings `mapstructure:"session"`
	Local   LocalSettings   `mapstructure:"local"`
	OIDC    OIDCSettings    `mapstructure:"oidc"`
	TOTP    TOTPSettings    `mapstructure:"totp"`
	Unlock  UnlockSettings  `mapstructure:"unlock"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// SessionSettings configures refresh tokens and session lifetimes.
type SessionSettings struct {
	RefreshTTL    time.Duration `mapstructure:"refresh_token_ttl"`
	RefreshLength int           `mapstructure:"refresh_token_length"`
}

// LocalSettings defines controls for the local auth provider.
type LocalSettings struct {
	MinPasswordLength int `mapstructure:"min_password_length"`
}

// OIDCSettings configures the optional federated sign-in popup.
type OIDCSettings struct {
	Enabled       bool          `mapstructure:"enabled"`
	Issuer        string        `mapstructure:"issuer"`
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	RedirectURL   string        `mapstructure:"redirect_url"`
	Scopes        []string      `mapstructure:"scopes"`
	AutoProvision bool          `mapstructure:"auto_provision"`
	StateTTL      time.Duration `mapstructure:"state_ttl"`
}

// TOTPSettings configures authenticator enrollment.
type TOTPSettings struct {
	Issuer            string `mapstructure:"issuer"`
	RecoveryCodeCount int    `mapstructure:"recovery_code_count"`
}

// UnlockSettings configures device unlock grants.
type UnlockSettings struct {
	GrantTTL time.Duration `mapstructure:"grant_ttl"`
}

// LedgerConfig holds bookkeeping settings.
type LedgerConfig struct {
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// MaintenanceConfig drives background cleanup scheduling.
type MaintenanceConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	SessionSchedule string `mapstructure:"session_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("FINFORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit.requests", 100)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.rate_limit.challenge_requests", 10)
	v.SetDefault("server.rate_limit.challenge_window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/finfortress.sqlite")

	v.SetDefault("profile.mongo.enabled", false)
	v.SetDefault("profile.mongo.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("profile.mongo.database", "finfortress")
	v.SetDefault("profile.mongo.collection", "security_profiles")
	v.SetDefault("profile.mongo.timeout", "5s")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("auth.jwt.issuer", "finfortress")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
	v.SetDefault("auth.session.refresh_token_ttl", "720h") // 30 days
	v.SetDefault("auth.session.refresh_token_length", 48)
	v.SetDefault("auth.local.min_password_length", 8)
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("auth.oidc.auto_provision", true)
	v.SetDefault("auth.oidc.state_ttl", "10m")
	v.SetDefault("auth.totp.issuer", "FinFortress")
	v.SetDefault("auth.totp.recovery_code_count", 10)
	v.SetDefault("auth.unlock.grant_ttl", "12h")

	v.SetDefault("ledger.maintenance.enabled", true)
	v.SetDefault("ledger.maintenance.session_schedule", "@hourly")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
