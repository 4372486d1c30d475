package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable read by Load.
const Prefix = "CALENDAR"

// Config captures environment driven configuration values for the calendar service.
type Config struct {
	HTTPPort        int           `envconfig:"HTTP_PORT" default:"8080"`
	SQLiteDSN       string        `envconfig:"SQLITE_DSN" default:"calendar.db"`
	SessionSecret   string        `envconfig:"SESSION_SECRET"`
	SessionTTL      time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	MaxRoomCapacity int           `envconfig:"MAX_ROOM_CAPACITY" default:"0"`
	SecureCookies   bool          `envconfig:"SECURE_COOKIES" default:"true"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// RedisAddr switches room locking from in-process to Redis when set.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LockTTL       time.Duration `envconfig:"LOCK_TTL" default:"10s"`

	// AMQPURL enables domain notifications on a RabbitMQ topic exchange when set.
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"calendar.events"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`

	// UniformRoomConflicts makes room bookings check room-bound events too.
	UniformRoomConflicts bool `envconfig:"UNIFORM_ROOM_CONFLICTS" default:"false"`
}

// Load parses configuration values from the current process environment.
//
// Defaults are applied for optional fields. Missing required values are
// reported before malformed ones, each as a comma separated key list.
func Load() (Config, error) {
	var cfg Config

	// envconfig stops at the first unparsable value, leaving later fields
	// unset, so required keys are checked against the environment directly.
	var parseErr *envconfig.ParseError
	if err := envconfig.Process(Prefix, &cfg); err != nil && !errors.As(err, &parseErr) {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	if missing := missingKeys(); len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if parseErr != nil {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", parseErr.KeyName)
	}

	cfg.SessionSecret = strings.TrimSpace(cfg.SessionSecret)
	if invalid := cfg.invalidKeys(); len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

func missingKeys() []string {
	var missing []string
	if env("SESSION_SECRET") == "" {
		missing = append(missing, key("SESSION_SECRET"))
	}
	if (env("ADMIN_EMAIL") == "") != (env("ADMIN_PASSWORD") == "") {
		missing = append(missing, key("ADMIN_EMAIL")+"/"+key("ADMIN_PASSWORD"))
	}
	return missing
}

func (c Config) invalidKeys() []string {
	var invalid []string
	if c.HTTPPort <= 0 {
		invalid = append(invalid, key("HTTP_PORT"))
	}
	if c.SessionTTL <= 0 {
		invalid = append(invalid, key("SESSION_TTL"))
	}
	if c.MaxRoomCapacity < 0 {
		invalid = append(invalid, key("MAX_ROOM_CAPACITY"))
	}
	if c.ShutdownTimeout <= 0 {
		invalid = append(invalid, key("SHUTDOWN_TIMEOUT"))
	}
	if c.LockTTL <= 0 {
		invalid = append(invalid, key("LOCK_TTL"))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		invalid = append(invalid, key("LOG_LEVEL"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		invalid = append(invalid, key("LOG_FORMAT"))
	}
	return invalid
}

// ListenAddr returns the HTTP listen address derived from HTTPPort.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func key(name string) string {
	return Prefix + "_" + name
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(key(name)))
}
