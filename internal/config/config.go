package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	GinMode  string
	LogLevel string
	Timezone string

	DBDriver    string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	RedisURL      string
	RedisHost     string
	RedisPort     string
	SessionSecret string

	ClerkJWTKey            string
	ClerkAuthorizedParties []string

	CORSAllowedOrigins []string

	// TaskDeleteStrict rejects batch deletes spanning more than one project.
	TaskDeleteStrict bool

	NodeID int64

	Events   EventsConfig
	SMTP     SMTPConfig
	Workflow WorkflowConfig
	OTel     OTelConfig
}

type EventsConfig struct {
	SigningKey string
	Stream     string
	Group      string
	Consumer   string
	DLQStream  string

	MaxAttempts     int
	ReclaimIdle     time.Duration
	ReclaimInterval time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Sender   string
}

// Enabled reports whether outbound email goes to a real SMTP server.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type WorkflowConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	LeaseTimeout time.Duration
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Load reads configuration from the environment, after loading a .env file if one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "5000"),
		GinMode:  getEnv("GIN_MODE", "debug"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TIMEZONE", "Local"),

		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "pmuser"),
		DBPassword:  getEnv("DB_PASSWORD", "pmpassword"),
		DBName:      getEnv("DB_NAME", "project_management"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		SessionSecret: getEnv("SESSION_SECRET", "default-secret-key-change-me"),

		ClerkJWTKey:            getEnv("CLERK_JWT_KEY", ""),
		ClerkAuthorizedParties: getEnvList("CLERK_AUTHORIZED_PARTIES"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),

		TaskDeleteStrict: getEnvBool("TASK_DELETE_STRICT", false),
		NodeID:           int64(getEnvInt("NODE_ID", 1)),

		Events: EventsConfig{
			SigningKey: getEnv("EVENT_SIGNING_KEY", ""),
			Stream:     getEnv("EVENT_STREAM", "pm_events"),
			Group:      getEnv("EVENT_GROUP", "pm_workers"),
			Consumer:   getEnv("EVENT_CONSUMER", hostname()),
			DLQStream:  getEnv("EVENT_DLQ_STREAM", "pm_events_dlq"),

			MaxAttempts:     getEnvInt("EVENT_MAX_ATTEMPTS", 5),
			ReclaimIdle:     getEnvDuration("EVENT_RECLAIM_IDLE", 5*time.Minute),
			ReclaimInterval: getEnvDuration("EVENT_RECLAIM_INTERVAL", time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			Sender:   getEnv("SENDER_EMAIL", "no-reply@localhost"),
		},
		Workflow: WorkflowConfig{
			PollInterval: getEnvDuration("WORKFLOW_POLL_INTERVAL", 15*time.Second),
			MaxAttempts:  getEnvInt("WORKFLOW_MAX_ATTEMPTS", 4),
			LeaseTimeout: getEnvDuration("WORKFLOW_LEASE_TIMEOUT", 10*time.Minute),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "project-management-api"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
	}
}

// Location resolves the configured time zone used for date-only comparisons.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "worker-1"
	}
	return name
}
