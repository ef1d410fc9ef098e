package app

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr        string
	MongoURI        string
	MongoDatabase   string
	LogLevel        string
	LogFormat       string
	DownloadDir     string
	TempDir         string
	ForumBaseURL    string // empty disables courtesy acknowledgements
	BandwidthLimit  int64  // bytes per second; 0 = unlimited
	EventBufferSize int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DB", "galleryrip"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DownloadDir:     getEnv("DOWNLOAD_DIR", "downloads"),
		TempDir:         getEnv("TEMP_DIR", os.TempDir()),
		ForumBaseURL:    getEnv("FORUM_BASE_URL", ""),
		BandwidthLimit:  getEnvInt64("BANDWIDTH_LIMIT_BYTES", 0),
		EventBufferSize: int(getEnvInt64("EVENT_BUFFER_SIZE", 64)),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}
