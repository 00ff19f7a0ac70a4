package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/config"
	v1 "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/controller/http/v1"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/usecase"
	psqlRepo "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/psql"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/rabbitmq"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/redis"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/s3"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/psql"
	redisGo "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/redis"
	s3ClientGo "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/s3"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/middleware"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/report"
)

func main() {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if err := config.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}
	if err := cfg.Require(config.Postgres, config.Auth); err != nil {
		logrus.WithError(err).Fatal("missing configuration")
	}
	log := logrus.WithField("component", "gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := psql.NewPostgresDB(cfg.Postgres)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	store := psqlRepo.NewGormDatasetRepo(db)
	if err := store.Migrate(); err != nil {
		log.WithError(err).Fatal("failed to migrate schema")
	}

	uc := usecase.NewDatasetUseCase(store, nil, nil, nil, report.NewRenderer(), cfg.RetentionLimit)
	uc.ReportURLTTL = cfg.ReportURLTTL

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = redisGo.NewRedisClient(ctx, redisGo.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer redisClient.Close()
		uc.Cache = redis.NewSummaryCache(redisClient, cfg.Redis.CacheTTL)
	} else {
		log.Warn("REDIS_HOST not set, latest cache and rate limiting disabled")
	}

	if cfg.S3.Endpoint != "" {
		s3Client, err := s3ClientGo.NewS3Client(cfg.S3)
		if err != nil {
			log.WithError(err).Fatal("failed to init s3 client")
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			log.WithError(err).Fatal("failed to prepare bucket")
		}
		uc.Storage = s3.NewS3Repo(s3Client)
	} else {
		log.Warn("S3_HOST not set, uploads are not archived and reports render inline")
	}

	if cfg.RabbitMQURL != "" {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to rabbitmq")
		}
		defer conn.Close()

		publisher, err := rabbitmq.NewRabbitPublisher(conn, rabbitmq.DatasetsExchange, rabbitmq.IngestedRoutingKey)
		if err != nil {
			log.WithError(err).Fatal("failed to init publisher")
		}
		defer publisher.Close()
		uc.Publisher = publisher
	} else {
		log.Warn("RABBITMQ_HOST not set, reports are not pre-rendered")
	}

	protected := []gin.HandlerFunc{middleware.JWTAuthMiddleware([]byte(cfg.JWTSecret))}
	if redisClient != nil {
		protected = append(protected, middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RedisClient: redisClient,
			Limit:       cfg.RateLimit,
			Window:      cfg.RateWindow,
			KeyPrefix:   "rl:",
			Extractor:   middleware.Owner,
		}))
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logrus.WithField("component", "http")))
	v1.Register(r, v1.NewDatasetHandler(uc, cfg.MaxUploadBytes), protected...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
