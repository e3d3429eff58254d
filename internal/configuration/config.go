package configuration

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Telegram    TelegramConfig
	Database    DatabaseConfig
	MinIO       MinIOConfig
	Server      ServerConfig
	Limits      LimitsConfig
	NATSURL     string
	KeycloakUrl string
	CLAMAVURL   string
	ProxyURL    string
	CookiesFile string
	DownloadDir string
}

type TelegramConfig struct {
	BotToken    string
	BotUsername string
	AdminIDs    []int64
	LogChannel  int64 // 0 = disabled
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
}

type ServerConfig struct {
	Port string
}

type LimitsConfig struct {
	DefaultDailyCount int64
	DefaultDailySize  int64 // bytes
	PremiumDailyCount int64
	PremiumDailySize  int64 // bytes
	CooldownSeconds   int64 // 0 disables the cooldown
	ProgressInterval  time.Duration
	MaxFileSize       int64 // absolute per-file ceiling in bytes
}

const defaultProgressInterval = 5 * time.Second

func Load() *Config {
	return &Config{
		Telegram: TelegramConfig{
			BotToken:    getEnv("BOT_TOKEN", ""),
			BotUsername: getEnv("BOT_USERNAME", "MyUploaderBot"),
			AdminIDs:    parseIDList(getEnv("ADMINS", "")),
			LogChannel:  getEnvInt64("LOG_CHANNEL", 0),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "botuser"),
			Password: getEnv("DB_PASSWORD", "botpassword"),
			DBName:   getEnv("DB_NAME", "uploaderbot"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
			BucketName: getEnv("MINIO_BUCKET", "uploads"),
			UseSSL:     getEnv("MINIO_USE_SSL", "false") == "true",
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Limits: LimitsConfig{
			DefaultDailyCount: getEnvInt64("DEFAULT_DAILY_COUNT_LIMIT", 10),
			DefaultDailySize:  getEnvInt64("DEFAULT_DAILY_SIZE_LIMIT_MB", 2000) * 1024 * 1024,
			PremiumDailyCount: getEnvInt64("PREMIUM_DAILY_COUNT_LIMIT", 100),
			PremiumDailySize:  getEnvInt64("PREMIUM_DAILY_SIZE_LIMIT_MB", 10000) * 1024 * 1024,
			CooldownSeconds:   getEnvInt64("NORMAL_COOLDOWN_SECONDS", 120),
			ProgressInterval:  progressInterval(getEnvInt64("PROGRESS_UPDATE_INTERVAL", 5)),
			MaxFileSize:       getEnvInt64("MAX_FILE_SIZE", 2*1024*1024*1024),
		},
		NATSURL:     getEnv("NATS_URL", "nats://localhost:4222"),
		KeycloakUrl: getEnv("KEYCLOAK_URL", ""),
		CLAMAVURL:   getEnv("CLAMAV_URL", ""),
		ProxyURL:    strings.TrimSpace(getEnv("PROXY_URL", "")),
		CookiesFile: getEnv("COOKIES_FILE", "/app/cookies.txt"),
		DownloadDir: getEnv("DOWNLOAD_DIR", "/tmp/downloads"),
	}
}

// IsAdmin reports whether the given user id is in the ADMINS list.
func (t *TelegramConfig) IsAdmin(userID int64) bool {
	for _, id := range t.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// progressInterval clamps the configured update interval: invalid values fall
// back to the default, anything below one second is raised to one second.
func progressInterval(seconds int64) time.Duration {
	if seconds < 1 {
		return defaultProgressInterval
	}
	return time.Duration(seconds) * time.Second
}

func parseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}
