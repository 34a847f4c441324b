package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/trezcool/horarios/apps/api/echo"
	"github.com/trezcool/horarios/core"
	"github.com/trezcool/horarios/core/schedule"
	eventsvc "github.com/trezcool/horarios/services/events"
	"github.com/trezcool/horarios/services/locker"
	logsvc "github.com/trezcool/horarios/services/logger"
	"github.com/trezcool/horarios/storage/database"
	sqlxrepos "github.com/trezcool/horarios/storage/database/sqlx"
)

const dbSetupTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	workDir, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, "getting working directory")
	}
	conf, err := core.NewConfig(workDir)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}

	// set up loggers
	zapLogger, err := logsvc.NewZapLogger(conf)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()

	var logger core.Logger = zapLogger
	if conf.RollbarToken != "" {
		rollbarLogger := logsvc.NewRollbarLogger(zapLogger, conf)
		rollbarLogger.Enable(!conf.Debug)
		logger = rollbarLogger
	}

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	db, err := setUpDB(ctx, conf)
	cancel()
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	lock, closeLock := setUpLocker(conf, logger)
	defer closeLock()

	publisher, closePublisher, err := setUpPublisher(conf, logger)
	if err != nil {
		return errors.Wrap(err, "setting up event publisher")
	}
	defer closePublisher()

	// set up services
	scheduleSvc := schedule.NewService(schedule.Deps{
		Repo:      sqlxrepos.NewScheduleRepository(db),
		Catalog:   sqlxrepos.NewCatalogRepository(db),
		Locker:    lock,
		Publisher: publisher,
		Logger:    logger,
		Weekdays:  conf.Schedule.Weekdays,
	})

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		ScheduleSvc: scheduleSvc,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		return errors.Wrap(err, "server error")

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("could not stop server gracefully", err)

			if err := server.Close(); err != nil {
				return errors.Wrap(err, "could not force stop server")
			}
		}
	}
	return nil
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if conf.Database.AdminUser != "" {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}

	if conf.Database.AutoMigrate {
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// setUpLocker serializes writes per teacher across instances through Redis when
// configured, within this process otherwise.
func setUpLocker(conf *core.Config, logger core.Logger) (schedule.Locker, func()) {
	if conf.Redis.Address == "" {
		logger.Warn("redis not configured: teacher locks are local to this instance")
		return locker.NewLocal(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	return locker.NewRedis(client, conf.Redis.LockTTL), func() {
		if err := client.Close(); err != nil {
			logger.Error("closing redis client", err)
		}
	}
}

func setUpPublisher(conf *core.Config, logger core.Logger) (core.EventPublisher, func(), error) {
	if conf.RabbitMQ.URL == "" {
		return eventsvc.NewLogPublisher(logger), func() {}, nil
	}

	pub, err := eventsvc.NewAMQPPublisher(conf)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Error("closing amqp publisher", err)
		}
	}, nil
}
