package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/config"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/usecase"
	psqlRepo "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/psql"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/rabbitmq"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/s3"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/psql"
	s3ClientGo "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/s3"
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
	if err := cfg.Require(config.Postgres, config.S3, config.RabbitMQ); err != nil {
		logrus.WithError(err).Fatal("missing configuration")
	}
	log := logrus.WithField("component", "reporter")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := psql.NewPostgresDB(cfg.Postgres)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to postgres")
	}
	store := psqlRepo.NewGormDatasetRepo(db)

	s3Client, err := s3ClientGo.NewS3Client(cfg.S3)
	if err != nil {
		log.WithError(err).Fatal("failed to init s3 client")
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		log.WithError(err).Fatal("failed to prepare bucket")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to rabbitmq")
	}
	defer conn.Close()

	reportUC := usecase.NewReportUseCase(store, s3.NewS3Repo(s3Client), report.NewRenderer())

	consumer, err := rabbitmq.NewReportConsumer(conn, rabbitmq.DatasetsExchange, rabbitmq.IngestedRoutingKey,
		rabbitmq.ReportQueue, reportUC)
	if err != nil {
		log.WithError(err).Fatal("failed to init consumer")
	}
	defer consumer.Close()

	log.Info("reporter started")
	if err := consumer.Start(ctx); err != nil {
		log.WithError(err).Fatal("consumer stopped with error")
	}
	log.Info("reporter stopped")
}
