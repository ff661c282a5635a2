package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	APIBaseURL       string
	APITimeoutMs     int
	APIRetryAttempts int
	APIRateLimitRPS  int

	HealthPollSec int
	ListPollSec   int
	StatusPollSec int

	ListPerPage int
	OutputDir   string

	ProgressTickMs   int
	ProgressSettleMs int
	ProgressMaxStep  int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIBaseURL:       getEnv("TW_API_BASE_URL", "http://localhost:8000"),
		APITimeoutMs:     getEnvInt("TW_API_TIMEOUT_MS", 30000),
		APIRetryAttempts: getEnvInt("TW_API_RETRY_ATTEMPTS", 3),
		APIRateLimitRPS:  getEnvInt("TW_API_RATE_LIMIT_RPS", 10),

		HealthPollSec: getEnvInt("TW_HEALTH_POLL_SEC", 10),
		ListPollSec:   getEnvInt("TW_LIST_POLL_SEC", 30),
		StatusPollSec: getEnvInt("TW_STATUS_POLL_SEC", 2),

		ListPerPage: getEnvInt("TW_LIST_PER_PAGE", 20),
		OutputDir:   getEnv("TW_OUTPUT_DIR", cwd+string(os.PathSeparator)+"out"),

		ProgressTickMs:   getEnvInt("TW_PROGRESS_TICK_MS", 500),
		ProgressSettleMs: getEnvInt("TW_PROGRESS_SETTLE_MS", 500),
		ProgressMaxStep:  getEnvInt("TW_PROGRESS_MAX_STEP", 15),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
