// Package config builds the process configuration from environment variables
// so main stays lean. Every knob has a development default; production
// deployments override via the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Redis    Redis
	Postgres Postgres
	Kafka    Kafka
	Mail     Mail
	Admin    Admin
	Sweep    Sweep
	Entities Entities

	Registration Registration
}

// Entities points at the downstream member management API.
type Entities struct {
	BaseURL string
}

// Registration tunes orchestrator behavior.
type Registration struct {
	DefaultAdminEmail string
	DuplicateStrict   bool
	EventBusCapacity  int
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Redis configures the session store connection.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Postgres carries the DSNs of the two record directories consulted for
// duplicate checks.
type Postgres struct {
	MemberDSN string
	LegacyDSN string
}

// Kafka configures the registration event stream. Empty brokers disable it.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Mail configures the outbound SMTP relay. An empty host switches to the
// log-only sender.
type Mail struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Admin configures the administrator surface.
type Admin struct {
	JWTSigningKey string
	TokenIssuer   string
	TokenAudience string
}

// Sweep configures the expired-session sweeper.
type Sweep struct {
	Interval time.Duration
	Batch    int
}

// FromEnv reads the configuration from the environment.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr:            envStr("REGISTRAR_ADDR", ":8080"),
			ShutdownTimeout: envDuration("REGISTRAR_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: Redis{
			URL:          envStr("REGISTRAR_REDIS_URL", ""),
			PoolSize:     envInt("REGISTRAR_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REGISTRAR_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("REGISTRAR_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REGISTRAR_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REGISTRAR_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: Postgres{
			MemberDSN: envStr("REGISTRAR_MEMBER_DSN", ""),
			LegacyDSN: envStr("REGISTRAR_LEGACY_DSN", ""),
		},
		Kafka: Kafka{
			Brokers: envList("REGISTRAR_KAFKA_BROKERS"),
			Topic:   envStr("REGISTRAR_KAFKA_TOPIC", ""),
		},
		Mail: Mail{
			Host:     envStr("REGISTRAR_SMTP_HOST", ""),
			Port:     envInt("REGISTRAR_SMTP_PORT", 587),
			Username: envStr("REGISTRAR_SMTP_USER", ""),
			Password: envStr("REGISTRAR_SMTP_PASSWORD", ""),
			From:     envStr("REGISTRAR_MAIL_FROM", "no-reply@registrar.local"),
		},
		Admin: Admin{
			JWTSigningKey: envStr("REGISTRAR_ADMIN_JWT_KEY", "dev-secret-key-change-in-production"),
			TokenIssuer:   envStr("REGISTRAR_ADMIN_JWT_ISSUER", "registrar"),
			TokenAudience: envStr("REGISTRAR_ADMIN_JWT_AUDIENCE", "registrar-admin"),
		},
		Sweep: Sweep{
			Interval: envDuration("REGISTRAR_SWEEP_INTERVAL", 5*time.Minute),
			Batch:    envInt("REGISTRAR_SWEEP_BATCH", 100),
		},
		Entities: Entities{
			BaseURL: envStr("REGISTRAR_ENTITY_API_URL", "http://localhost:9090"),
		},
		Registration: Registration{
			DefaultAdminEmail: envStr("REGISTRAR_DEFAULT_ADMIN_EMAIL", "admin@registrar.local"),
			DuplicateStrict:   os.Getenv("REGISTRAR_DUPLICATE_LOOKUP_STRICT") == "true",
			EventBusCapacity:  envInt("REGISTRAR_EVENT_BUS_CAPACITY", 256),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
