package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	Auth         AuthSettings         `mapstructure:"auth"`
	Token        TokenSettings        `mapstructure:"token"`
	Session      SessionSettings      `mapstructure:"session"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
	Notification NotificationSettings `mapstructure:"notification"`
	Staff        StaffSettings        `mapstructure:"staff"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	ElectionName   string   `mapstructure:"election_name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// KafkaSettings configures the audit event producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// AuthSettings configures credential signing for voter sessions and staff logins
type AuthSettings struct {
	SecretKey     string        `mapstructure:"secret_key"`
	AdminTokenTTL time.Duration `mapstructure:"admin_token_ttl"`
}

// TokenSettings configures voting token generation
type TokenSettings struct {
	Length int           `mapstructure:"length"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// SessionSettings configures the voting session state machine
type SessionSettings struct {
	TTL time.Duration `mapstructure:"ttl"`
	// IPPolicy selects how an IP change during a session is treated:
	// "strict" flags on the first mismatch, "tolerant" allows up to
	// IPChangeTolerance changes before flagging.
	IPPolicy          string `mapstructure:"ip_policy"`
	IPChangeTolerance int    `mapstructure:"ip_change_tolerance"`
}

// RateLimitSettings configures sliding windows per endpoint group
type RateLimitSettings struct {
	AuthMaxAttempts int           `mapstructure:"auth_max_attempts"`
	AuthWindow      time.Duration `mapstructure:"auth_window"`
	VoteMaxAttempts int           `mapstructure:"vote_max_attempts"`
	VoteWindow      time.Duration `mapstructure:"vote_window"`
}

// NotificationSettings toggles token delivery channels
type NotificationSettings struct {
	Enabled bool     `mapstructure:"enabled"`
	Methods []string `mapstructure:"methods"`
}

// StaffSettings carries env-configured staff user lists in
// "username:argon2hash;username:argon2hash" form per role.
type StaffSettings struct {
	AdminUsers        string `mapstructure:"admin_users"`
	ECOfficialUsers   string `mapstructure:"ec_official_users"`
	PollingAgentUsers string `mapstructure:"polling_agent_users"`
}

type TelemetrySettings struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	Namespace      string `mapstructure:"namespace"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("ELECTION")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.election_name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"auth.secret_key",
		"auth.admin_token_ttl",
		"token.length",
		"token.ttl",
		"session.ttl",
		"session.ip_policy",
		"session.ip_change_tolerance",
		"rate_limit.auth_max_attempts",
		"rate_limit.auth_window",
		"rate_limit.vote_max_attempts",
		"rate_limit.vote_window",
		"notification.enabled",
		"notification.methods",
		"staff.admin_users",
		"staff.ec_official_users",
		"staff.polling_agent_users",
		"telemetry.metrics_enabled",
		"telemetry.namespace",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *AppConfig) error {
	if cfg.App.Env == "production" && len(cfg.Auth.SecretKey) < 32 {
		return fmt.Errorf("auth.secret_key must be at least 32 characters in production")
	}
	switch cfg.Session.IPPolicy {
	case "strict", "tolerant":
	default:
		return fmt.Errorf("session.ip_policy must be strict or tolerant, got %q", cfg.Session.IPPolicy)
	}
	if cfg.Token.Length < 4 || cfg.Token.Length > 8 {
		return fmt.Errorf("token.length must be between 4 and 8, got %d", cfg.Token.Length)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "election-system")
	v.SetDefault("app.election_name", "Student Election")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8000)
	v.SetDefault("app.allowed_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "election")
	v.SetDefault("postgres.password", "election_password")
	v.SetDefault("postgres.database", "election")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 20)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "election")
	v.SetDefault("kafka.async", true)

	v.SetDefault("auth.secret_key", "dev-only-secret-change-before-election")
	v.SetDefault("auth.admin_token_ttl", "8h")

	// 4-character codes over a confusion-free alphabet.
	v.SetDefault("token.length", 4)
	v.SetDefault("token.ttl", "24h")

	v.SetDefault("session.ttl", "20m")
	v.SetDefault("session.ip_policy", "strict")
	v.SetDefault("session.ip_change_tolerance", 2)

	v.SetDefault("rate_limit.auth_max_attempts", 10)
	v.SetDefault("rate_limit.auth_window", "5m")
	v.SetDefault("rate_limit.vote_max_attempts", 5)
	v.SetDefault("rate_limit.vote_window", "1m")

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.methods", []string{"email"})

	v.SetDefault("staff.admin_users", "")
	v.SetDefault("staff.ec_official_users", "")
	v.SetDefault("staff.polling_agent_users", "")

	v.SetDefault("telemetry.metrics_enabled", true)
	v.SetDefault("telemetry.namespace", "election")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "ELECTION_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
