package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/entity"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/psql"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/s3"
)

const DefaultEnvFile = "./.env.local"

// Dependency names accepted by Require.
const (
	Postgres = "postgres"
	Redis    = "redis"
	S3       = "s3"
	RabbitMQ = "rabbitmq"
	Auth     = "auth"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type Config struct {
	HTTPAddr       string
	LogLevel       string
	LogFormat      string
	RetentionLimit int
	MaxUploadBytes int64

	RateLimit  int
	RateWindow time.Duration

	ReportURLTTL time.Duration
	JWTSecret    string

	Postgres    psql.Config
	Redis       RedisConfig
	S3          s3.Config
	RabbitMQURL string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("retention_limit", entity.DefaultRetentionLimit)
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("rate_limit", 10)
	v.SetDefault("rate_window", time.Second)
	v.SetDefault("report_url_ttl", 24*time.Hour)
	v.SetDefault("cache_ttl", 10*time.Minute)

	v.SetDefault("psql_port", 5432)
	v.SetDefault("psql_sslmode", "disable")
	v.SetDefault("psql_max_open_conns", 20)
	v.SetDefault("psql_max_idle_conns", 5)
	v.SetDefault("redis_port", "6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("s3_bucket", "equipment-datasets")
	v.SetDefault("s3_secure", false)
	v.SetDefault("rabbitmq_port", "5672")
}

// Load reads envFile into the process environment when present, then resolves
// every setting from the environment with defaults applied.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			logrus.WithField("file", envFile).Debug("no env file found, falling back to OS environment variables")
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		HTTPAddr:       v.GetString("http_addr"),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		RetentionLimit: v.GetInt("retention_limit"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),
		RateLimit:      v.GetInt("rate_limit"),
		RateWindow:     v.GetDuration("rate_window"),
		ReportURLTTL:   v.GetDuration("report_url_ttl"),
		JWTSecret:      v.GetString("jwt_secret"),

		Postgres: psql.Config{
			Host:         v.GetString("psql_host"),
			Port:         v.GetInt("psql_port"),
			User:         v.GetString("psql_user"),
			Password:     v.GetString("psql_password"),
			DBName:       v.GetString("psql_db"),
			SslMode:      v.GetString("psql_sslmode"),
			MaxOpenConns: v.GetInt("psql_max_open_conns"),
			MaxIdleConns: v.GetInt("psql_max_idle_conns"),
		},
		Redis: RedisConfig{
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
			CacheTTL: v.GetDuration("cache_ttl"),
		},
		S3: s3.Config{
			AccessKey: v.GetString("s3_access_key"),
			SecretKey: v.GetString("s3_secret_key"),
			Bucket:    v.GetString("s3_bucket"),
			Secure:    v.GetBool("s3_secure"),
		},
	}

	if host := v.GetString("redis_host"); host != "" {
		cfg.Redis.Addr = net.JoinHostPort(host, v.GetString("redis_port"))
	}
	if host := v.GetString("s3_host"); host != "" {
		port := v.GetString("s3_port")
		cfg.S3.Endpoint = host
		if port != "" {
			cfg.S3.Endpoint = net.JoinHostPort(host, port)
		}
	}
	if host := v.GetString("rabbitmq_host"); host != "" {
		cfg.RabbitMQURL = fmt.Sprintf("amqp://%s:%s@%s/",
			v.GetString("rabbitmq_user"), v.GetString("rabbitmq_password"),
			net.JoinHostPort(host, v.GetString("rabbitmq_port")))
	}

	if cfg.RetentionLimit < 1 {
		return nil, fmt.Errorf("RETENTION_LIMIT must be at least 1, got %d", cfg.RetentionLimit)
	}
	return cfg, nil
}

// Require reports every missing setting for the named dependencies.
func (c *Config) Require(deps ...string) error {
	var missing []string
	check := func(name, val string) {
		if val == "" {
			missing = append(missing, name)
		}
	}

	for _, dep := range deps {
		switch dep {
		case Postgres:
			check("PSQL_HOST", c.Postgres.Host)
			check("PSQL_USER", c.Postgres.User)
			check("PSQL_PASSWORD", c.Postgres.Password)
			check("PSQL_DB", c.Postgres.DBName)
		case Redis:
			check("REDIS_HOST", c.Redis.Addr)
		case S3:
			check("S3_HOST", c.S3.Endpoint)
			check("S3_ACCESS_KEY", c.S3.AccessKey)
			check("S3_SECRET_KEY", c.S3.SecretKey)
		case RabbitMQ:
			check("RABBITMQ_HOST", c.RabbitMQURL)
		case Auth:
			check("JWT_SECRET", c.JWTSecret)
		default:
			return fmt.Errorf("unknown dependency %q", dep)
		}
	}

	if len(missing) > 0 {
		return errors.New("environment variables not set: " + strings.Join(missing, ", "))
	}
	return nil
}
