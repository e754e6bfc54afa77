package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
	StoreBackendRedis    = "redis"
)

// MaxTranscriptPageSize is the largest page the platform returns per history query.
const MaxTranscriptPageSize = 100

// ErrMissingToken is returned by Load when no bot token is configured.
var ErrMissingToken = errors.New("DISCORD_TOKEN is required")

// Config aggregates runtime configuration for the bot.
type Config struct {
	App          AppConfig
	Discord      DiscordConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Transcript   TranscriptConfig
	Logger       LoggerConfig
	Admin        AdminConfig
	Notification NotificationConfig
}

// AppConfig controls process level behavior and the admin HTTP server.
type AppConfig struct {
	Name        string
	Env         string
	Version     string
	HTTPEnabled bool
	Host        string
	Port        string
}

// DiscordConfig holds the platform credentials and channel ids.
type DiscordConfig struct {
	Token            string
	MenuChannelID    string
	TicketCategoryID string
	LogsChannelID    string
	BannerURL        string
	StaffRoleID      string
}

// StoreConfig selects where tickets and the counter are persisted.
type StoreConfig struct {
	Backend        string
	Dir            string
	RedisKeyPrefix string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TranscriptConfig controls archive transcript generation.
type TranscriptConfig struct {
	Dir      string
	PageSize int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AdminConfig secures the admin HTTP API.
type AdminConfig struct {
	JWTSecret string
}

// NotificationConfig holds the optional lifecycle webhook.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	backend := strings.ToLower(getEnv("STORE_BACKEND", StoreBackendFile))
	switch backend {
	case StoreBackendFile, StoreBackendPostgres, StoreBackendRedis:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q", backend)
	}

	pageSize := getEnvAsInt("TRANSCRIPT_PAGE_SIZE", MaxTranscriptPageSize)
	if pageSize <= 0 || pageSize > MaxTranscriptPageSize {
		pageSize = MaxTranscriptPageSize
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "ticket-bot"),
			Env:         getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "dev"),
			HTTPEnabled: getEnvAsBool("HTTP_ENABLED", true),
			Host:        getEnv("APP_HOST", "0.0.0.0"),
			Port:        getEnv("APP_PORT", "8080"),
		},
		Discord: DiscordConfig{
			Token:            strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
			MenuChannelID:    strings.TrimSpace(os.Getenv("MENU_CHANNEL_ID")),
			TicketCategoryID: strings.TrimSpace(os.Getenv("TICKET_CATEGORY_ID")),
			LogsChannelID:    strings.TrimSpace(os.Getenv("LOGS_CHANNEL_ID")),
			BannerURL:        strings.TrimSpace(os.Getenv("BANNER_URL")),
			StaffRoleID:      strings.TrimSpace(os.Getenv("STAFF_ROLE_ID")),
		},
		Store: StoreConfig{
			Backend:        backend,
			Dir:            getEnv("STORE_DIR", "."),
			RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "ticketbot"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Transcript: TranscriptConfig{
			Dir:      getEnv("TRANSCRIPT_DIR", os.TempDir()),
			PageSize: pageSize,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Admin: AdminConfig{
			JWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if cfg.Discord.Token == "" {
		return cfg, ErrMissingToken
	}
	if cfg.Store.Backend == StoreBackendPostgres && cfg.Postgres.DSN == "" {
		return cfg, errors.New("POSTGRES_DSN is required for the postgres store backend")
	}

	return cfg, nil
}

// Warnings lists optional settings that are missing and the feature each one disables.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Discord.MenuChannelID == "" {
		warnings = append(warnings, "MENU_CHANNEL_ID not set; the ticket menu will not be posted")
	}
	if c.Discord.LogsChannelID == "" {
		warnings = append(warnings, "LOGS_CHANNEL_ID not set; archiving tickets will fail")
	}
	if c.Discord.TicketCategoryID == "" {
		warnings = append(warnings, "TICKET_CATEGORY_ID not set; tickets will be created without a parent")
	}
	if c.Discord.StaffRoleID == "" {
		warnings = append(warnings, "STAFF_ROLE_ID not set; only members with Manage Channels count as staff")
	}
	return warnings
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
