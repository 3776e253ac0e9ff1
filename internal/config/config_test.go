package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/dispatch")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.API.Port)
	assert.Equal(t, "/api/v0", cfg.API.BasePath)
	assert.Equal(t, []string{"*"}, cfg.API.CORSOrigins)
	assert.Equal(t, 500, cfg.Notification.QueueSize)
	assert.Equal(t, 10, cfg.Notification.MaxWorkers)
	assert.True(t, cfg.Notification.AsyncDispatch)
	assert.Equal(t, BackendMemory, cfg.Notification.Backend)
	assert.Equal(t, 10*time.Second, cfg.Notification.ChannelTimeout)
	assert.Equal(t, 2, cfg.Notification.DefaultMaxRetries)
	assert.Equal(t, "5/hour", cfg.RateLimit.AlertCreation)
	assert.Equal(t, "https://exp.host/--/api/v2/push/send", cfg.Push.ExpoURL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/dispatch")
	t.Setenv("ALERT_DISPATCH_ASYNC", "false")
	t.Setenv("MAX_WORKERS", "3")
	t.Setenv("CHANNEL_TIMEOUT", "2s")
	t.Setenv("DISPATCH_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKER", "kafka-1:9092, kafka-2:9092")
	t.Setenv("TELEGRAM_OPS_CHAT_ID", "-1001234")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Notification.AsyncDispatch)
	assert.Equal(t, 3, cfg.Notification.MaxWorkers)
	assert.Equal(t, 2*time.Second, cfg.Notification.ChannelTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(-1001234), cfg.Telegram.ChatID)
}

func TestLoad_MissingDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoad_KafkaBackendRequiresBrokers(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/dispatch")
	t.Setenv("DISPATCH_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKER", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKER")
}

func TestValidate_Rejects(t *testing.T) {
	base := func() Config {
		var c Config
		c.DB.DSN = "postgres://x"
		c.Notification.Backend = BackendMemory
		c.Notification.QueueSize = 1
		c.Notification.MaxWorkers = 1
		c.Notification.ChannelTimeout = time.Second
		c.Logging.Level = "info"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown backend", func(c *Config) { c.Notification.Backend = "redis" }, "invalid dispatch backend"},
		{"zero workers", func(c *Config) { c.Notification.MaxWorkers = 0 }, "max workers"},
		{"negative retries", func(c *Config) { c.Notification.DefaultMaxRetries = -1 }, "cannot be negative"},
		{"bad sms backend", func(c *Config) { c.SMS.Backend = "carrier-pigeon" }, "invalid sms backend"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	c := base()
	assert.NoError(t, c.validate())
}
