package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"
)

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type Config struct {
	HTTPPort         string
	DB               DBConfig
	KafkaBrokers     string
	ConsumerGroup    string
	RedisAddr        string
	RabbitMQURL      string
	MailExchange     string
	Location         *time.Location
	SessionTTL       time.Duration
	CatalogCacheTTL  time.Duration
	ReminderInterval time.Duration
	AdminNotifyEmail string
	LogLevel         logrus.Level
}

// Load reads the environment. Empty KAFKA_BROKERS, REDIS_ADDR or
// RABBITMQ_URL leave that integration switched off.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "roastery"),
			Password: getEnv("DB_PASSWORD", "roastery"),
			Name:     getEnv("DB_NAME", "roastery"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KafkaBrokers:     os.Getenv("KAFKA_BROKERS"),
		ConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", "order-notifier"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		MailExchange:     getEnv("MAIL_EXCHANGE", "mail.exchange"),
		AdminNotifyEmail: os.Getenv("ADMIN_NOTIFY_EMAIL"),
	}

	loc, err := time.LoadLocation(getEnv("ORDER_NUMBER_TZ", "Local"))
	if err != nil {
		return nil, fmt.Errorf("ORDER_NUMBER_TZ: %w", err)
	}
	cfg.Location = loc

	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CatalogCacheTTL, err = getDuration("CATALOG_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReminderInterval, err = getDuration("REMINDER_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	return cfg, nil
}

func NewLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)
	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	// bare numbers are seconds
	secs, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return time.Duration(secs) * time.Second, nil
}
