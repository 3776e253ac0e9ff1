package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		DSN string
	}
	API struct {
		Port        string
		BasePath    string
		CORSOrigins []string
	}
	Notification struct {
		QueueSize         int
		MaxWorkers        int
		AsyncDispatch     bool
		Backend           string
		ChannelTimeout    time.Duration
		DefaultMaxRetries int
	}
	Kafka struct {
		Brokers []string
		Topic   string
		GroupID string
	}
	RateLimit struct {
		AlertCreation string
	}
	Push struct {
		ExpoURL            string
		FCMProjectID       string
		FCMCredentialsFile string
	}
	SMS struct {
		Backend    string
		AccountSID string
		AuthToken  string
		FromNumber string
	}
	Email struct {
		Backend    string
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		From       string
	}
	AWS struct {
		Region string
	}
	Telegram struct {
		BotToken string
		ChatID   int64
	}
	Logging struct {
		Dir   string
		Level string
	}
}

const (
	BackendMemory = "memory"
	BackendKafka  = "kafka"
)

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.DB.DSN = os.Getenv("DB_DSN")

	// API settings
	cfg.API.Port = getEnv("API_PORT", ":8080")
	cfg.API.BasePath = getEnv("API_BASE_PATH", "/api/v0")
	cfg.API.CORSOrigins = getEnvList("CORS_ORIGINS", []string{"*"})

	// Dispatch worker settings
	cfg.Notification.QueueSize = getEnvInt("QUEUE_SIZE", 500)
	cfg.Notification.MaxWorkers = getEnvInt("MAX_WORKERS", 10)
	cfg.Notification.AsyncDispatch = getEnvBool("ALERT_DISPATCH_ASYNC", true)
	cfg.Notification.Backend = getEnv("DISPATCH_BACKEND", BackendMemory)
	cfg.Notification.ChannelTimeout = getEnvDuration("CHANNEL_TIMEOUT", 10*time.Second)
	cfg.Notification.DefaultMaxRetries = getEnvInt("MAX_NOTIFICATION_RETRIES", 2)

	// Kafka settings
	cfg.Kafka.Brokers = getEnvList("KAFKA_BROKER", nil)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", "alert_dispatch")
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", "emergency-dispatch")

	cfg.RateLimit.AlertCreation = getEnv("ALERT_CREATION_RATE", "5/hour")

	// Channel providers
	cfg.Push.ExpoURL = getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send")
	cfg.Push.FCMProjectID = os.Getenv("FCM_PROJECT_ID")
	cfg.Push.FCMCredentialsFile = os.Getenv("FCM_CREDENTIALS_FILE")

	cfg.SMS.Backend = os.Getenv("SMS_BACKEND")
	cfg.SMS.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("TWILIO_PHONE_NUMBER")

	cfg.Email.Backend = os.Getenv("EMAIL_BACKEND")
	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	cfg.Email.SMTPPort = getEnvInt("EMAIL_SMTP_PORT", 587)
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.From = getEnv("DEFAULT_FROM_EMAIL", cfg.Email.Username)

	cfg.AWS.Region = getEnv("AWS_REGION", "us-east-1")

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.ChatID = int64(getEnvInt("TELEGRAM_OPS_CHAT_ID", 0))

	cfg.Logging.Dir = getEnv("LOG_DIR", "logs")
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	// Validate required settings
	missing := []string{}
	if c.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if c.Notification.Backend == BackendKafka && len(c.Kafka.Brokers) == 0 {
		missing = append(missing, "KAFKA_BROKER")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configurations: %v", missing)
	}

	switch c.Notification.Backend {
	case BackendMemory, BackendKafka:
	default:
		return fmt.Errorf("invalid dispatch backend: %s", c.Notification.Backend)
	}
	if c.Notification.QueueSize < 1 {
		return fmt.Errorf("queue size must be positive, got %d", c.Notification.QueueSize)
	}
	if c.Notification.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be positive, got %d", c.Notification.MaxWorkers)
	}
	if c.Notification.ChannelTimeout <= 0 {
		return fmt.Errorf("channel timeout must be positive, got %s", c.Notification.ChannelTimeout)
	}
	if c.Notification.DefaultMaxRetries < 0 {
		return fmt.Errorf("max notification retries cannot be negative, got %d", c.Notification.DefaultMaxRetries)
	}

	switch c.SMS.Backend {
	case "", "twilio", "sns":
	default:
		return fmt.Errorf("invalid sms backend: %s", c.SMS.Backend)
	}
	switch c.Email.Backend {
	case "", "smtp", "ses":
	default:
		return fmt.Errorf("invalid email backend: %s", c.Email.Backend)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
