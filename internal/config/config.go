package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lpernett/godotenv"
)

// Config is resolved once at startup.
type Config struct {
	APIBaseURL     string
	ListenAddr     string
	RequestTimeout time.Duration
	RedisAddr      string
	LabelCacheTTL  time.Duration
	DatabaseDSN    string
	LogLevel       string
	MaxUploadBytes int64
	PreviewWidth   int
	AllowedOrigins []string
}

// Load reads an optional .env file and then the process environment. A
// missing .env file is not an error; the second return value reports
// whether one was applied.
func Load(envFiles ...string) (*Config, bool) {
	loaded := godotenv.Load(envFiles...) == nil

	return &Config{
		APIBaseURL:     strings.TrimRight(getEnv("FOODSCAN_API_URL", "http://localhost:8000"), "/"),
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		LabelCacheTTL:  getDuration("LABEL_CACHE_TTL", time.Hour),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxUploadBytes: int64(getInt("MAX_UPLOAD_BYTES", 10<<20)),
		PreviewWidth:   getInt("PREVIEW_WIDTH", 300),
		AllowedOrigins: getList("ALLOWED_ORIGINS"),
	}, loaded
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getList(key string) []string {
	var values []string
	for _, value := range strings.Split(getEnv(key, ""), ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}
	return values
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
