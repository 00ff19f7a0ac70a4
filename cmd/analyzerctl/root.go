package main

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/config"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/domain/usecase"
	psqlRepo "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/psql"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/redis"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/internal/repository/s3"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/psql"
	redisGo "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/redis"
	s3ClientGo "github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/client/s3"
	"github.com/PiyushRaj472100/Chemical-Equipment-Analyzer/pkg/report"
)

// opener builds the use case the commands run against. The returned func
// releases its connections.
type opener func(ctx context.Context, cfg *config.Config) (*usecase.DatasetUseCase, func(), error)

type rootOptions struct {
	envFile string
	debug   bool
	cfg     *config.Config
}

func newRootCmd(open opener) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "analyzerctl",
		Short:         "Administer stored equipment dataset summaries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if opts.debug {
				level = "debug"
			}
			if err := config.SetupLogging(level, cfg.LogFormat); err != nil {
				return err
			}
			logrus.SetOutput(cmd.ErrOrStderr())
			opts.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "dotenv file loaded before reading the environment")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newPruneCmd(opts, open),
		newHistoryCmd(opts, open),
		newIngestCmd(opts, open),
	)
	return root
}

// openUseCase connects to Postgres and, when configured, to Redis and S3 so
// pruning also drops cached summaries and stored objects.
func openUseCase(ctx context.Context, cfg *config.Config) (*usecase.DatasetUseCase, func(), error) {
	if err := cfg.Require(config.Postgres); err != nil {
		return nil, nil, err
	}
	log := logrus.WithField("component", "analyzerctl")

	db, err := psql.NewPostgresDB(cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	store := psqlRepo.NewGormDatasetRepo(db)
	if err := store.Migrate(); err != nil {
		return nil, nil, err
	}

	var closers []func() error
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, sqlDB.Close)
	}

	uc := usecase.NewDatasetUseCase(store, nil, nil, nil, report.NewRenderer(), cfg.RetentionLimit)

	if cfg.Redis.Addr != "" {
		client, err := redisGo.NewRedisClient(ctx, redisGo.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.WithError(err).Warn("redis unavailable, cached summaries are left to expire")
		} else {
			closers = append(closers, client.Close)
			uc.Cache = redis.NewSummaryCache(client, cfg.Redis.CacheTTL)
		}
	}

	if cfg.S3.Endpoint != "" {
		s3Client, err := s3ClientGo.NewS3Client(cfg.S3)
		if err != nil {
			log.WithError(err).Warn("s3 unavailable, objects of evicted datasets are kept")
		} else {
			uc.Storage = s3.NewS3Repo(s3Client)
		}
	}

	closeAll := func() {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		if err := errors.Join(errs...); err != nil {
			log.WithError(err).Warn("failed to close connections")
		}
	}
	return uc, closeAll, nil
}
