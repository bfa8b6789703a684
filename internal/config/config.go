package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the environment-driven settings of the server.
type Config struct {
	// Port the HTTP server listens on.
	Port string
	// DatabaseURL selects the Postgres store when set; the server falls
	// back to the in-memory store otherwise.
	DatabaseURL string
	// KafkaBrokers enables TransactionPosted publishing when non-empty.
	KafkaBrokers []string
	// KafkaTopic is the topic posted-transaction events go to.
	KafkaTopic string
	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string
}

// Load reads .env when present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not read .env")
	}

	cfg := Config{
		Port:        getenv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		KafkaTopic:  getenv("KAFKA_TOPIC", "ledger.transaction.posted"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

// ConfigureLogging applies the configured level and a timestamped formatter
// to the standard logrus logger.
func (c Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
