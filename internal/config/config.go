package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// minSessionSecretLength はセッショントークン署名鍵の最小バイト長。
const minSessionSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionSecret string
	SessionMaxAge int // 秒

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// Catalog cache
	CatalogCacheTTL time.Duration

	// Profile image
	ProfileImageTimeout time.Duration

	// Worker
	ProgressInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string
	AppEnv     string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	// 空の場合はリクエストのOriginをそのまま返す。
	CORSAllowedOrigins []string
}

// IsProduction は本番環境で動作しているかどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.SessionSecret) < minSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvPositiveInt("SESSION_MAX_AGE", 7*24*60*60)
	cfg.RateLimitGeneral = getEnvPositiveInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvPositiveInt("RATE_LIMIT_LOGIN", 10)
	cfg.CatalogCacheTTL = getEnvDuration("CATALOG_CACHE_TTL", 10*time.Minute)
	cfg.ProfileImageTimeout = getEnvDuration("PROFILE_IMAGE_TIMEOUT", 5*time.Second)
	cfg.ProgressInterval = getEnvDuration("PROGRESS_INTERVAL", time.Hour)
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = time.Hour
	}
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.CookieSecure = cfg.IsProduction()
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// getEnvPositiveInt は1以上の値のみ受け付け、それ以外はデフォルト値を返す。
func getEnvPositiveInt(key string, defaultVal int) int {
	if v := getEnvInt(key, defaultVal); v > 0 {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var list []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			list = append(list, s)
		}
	}
	return list
}
