package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DataFile         string
	LogFile          string
	MaxAccounts      int
	MaxLoginAttempts int
	SnapshotKey      string
	// AllowUnsignedSnapshot accepts a snapshot without a signature file once,
	// when a key is first configured for existing data.
	AllowUnsignedSnapshot bool
	MetricsFile           string
	LogLevel              slog.Level
}

// Load reads an optional .env file, then the environment. Unset or unusable
// values fall back to defaults.
func Load(logger *slog.Logger) Config {
	if logger == nil {
		logger = slog.Default()
	}
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, relying on environment")
	}

	return Config{
		DataFile:              getEnv("LEDGER_DATA_FILE", "bank.dat"),
		LogFile:               getEnv("LEDGER_LOG_FILE", "transactions.txt"),
		MaxAccounts:           getPositiveInt(logger, "LEDGER_MAX_ACCOUNTS", 100),
		MaxLoginAttempts:      getPositiveInt(logger, "LEDGER_MAX_LOGIN_ATTEMPTS", 3),
		SnapshotKey:           os.Getenv("LEDGER_SNAPSHOT_KEY"),
		AllowUnsignedSnapshot: getBool(logger, "LEDGER_SNAPSHOT_ALLOW_UNSIGNED", false),
		MetricsFile:           os.Getenv("LEDGER_METRICS_FILE"),
		LogLevel:              getLevel(logger, "LEDGER_LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getPositiveInt(logger *slog.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		logger.Warn("Ignoring invalid setting",
			slog.String("key", key),
			slog.String("value", v),
			slog.Int("default", fallback))
		return fallback
	}
	return n
}

func getBool(logger *slog.Logger, key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		logger.Warn("Ignoring invalid setting",
			slog.String("key", key),
			slog.String("value", v),
			slog.Bool("default", fallback))
		return fallback
	}
	return b
}

func getLevel(logger *slog.Logger, key string, fallback slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		logger.Warn("Ignoring invalid log level", slog.String("key", key), slog.String("value", v))
		return fallback
	}
	return level
}
