package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 5, cfg.RetentionLimit)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, time.Second, cfg.RateWindow)
	assert.Equal(t, 24*time.Hour, cfg.ReportURLTTL)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Empty(t, cfg.RabbitMQURL)
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.local")
	content := "PSQL_HOST=db\nPSQL_USER=u\nPSQL_PASSWORD=p\nPSQL_DB=analyzer\n" +
		"REDIS_HOST=cache\nRABBITMQ_HOST=mq\nRABBITMQ_USER=guest\nRABBITMQ_PASSWORD=secret\n" +
		"S3_HOST=minio\nS3_PORT=9000\nRETENTION_LIMIT=3\nRATE_WINDOW=2s\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	for _, key := range []string{"PSQL_HOST", "PSQL_USER", "PSQL_PASSWORD", "PSQL_DB", "REDIS_HOST",
		"RABBITMQ_HOST", "RABBITMQ_USER", "RABBITMQ_PASSWORD", "S3_HOST", "S3_PORT", "RETENTION_LIMIT", "RATE_WINDOW"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Postgres.Host)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "minio:9000", cfg.S3.Endpoint)
	assert.Equal(t, "amqp://guest:secret@mq:5672/", cfg.RabbitMQURL)
	assert.Equal(t, 3, cfg.RetentionLimit)
	assert.Equal(t, 2*time.Second, cfg.RateWindow)

	require.NoError(t, cfg.Require(Postgres, Redis, RabbitMQ))
	err = cfg.Require(S3, Auth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_ACCESS_KEY")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRejectsZeroRetention(t *testing.T) {
	t.Setenv("RETENTION_LIMIT", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestRequireUnknownDependency(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Require("kafka"))
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetFormatter(&logrus.TextFormatter{})
	})

	require.NoError(t, SetupLogging("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	assert.Error(t, SetupLogging("loud", "text"))
	assert.Error(t, SetupLogging("info", "xml"))
}
