package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tasktrackerhq/task-tracker-api/internal/auth"
	"github.com/tasktrackerhq/task-tracker-api/internal/config"
	"github.com/tasktrackerhq/task-tracker-api/internal/handler"
	"github.com/tasktrackerhq/task-tracker-api/internal/job"
	"github.com/tasktrackerhq/task-tracker-api/internal/mailer"
	"github.com/tasktrackerhq/task-tracker-api/internal/repository"
	"github.com/tasktrackerhq/task-tracker-api/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}
	logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongodb")

	db := client.Database(cfg.MongoDatabase)

	userRepo := repository.NewUserMongoRepository(ctx, &logger, db)
	otpRepo := repository.NewOtpMongoRepository(ctx, &logger, db)
	refreshRepo := repository.NewRefreshTokenMongoRepository(ctx, &logger, db)
	taskRepo := repository.NewTaskMongoRepository(ctx, &logger, db)
	emailLogRepo := repository.NewEmailLogMongoRepository(db)

	tokens := auth.NewTokenService(
		cfg.Token.AccessSecret,
		cfg.Token.RefreshSecret,
		cfg.Token.AccessTTL,
		cfg.Token.RefreshTTL,
		cfg.Token.Issuer,
	)

	dispatcher := mailer.NewDispatcher(newSender(cfg, &logger), emailLogRepo, &logger, cfg.MailQueueSize)
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	authUsecase := usecase.NewAuthUsecase(userRepo, refreshRepo, tokens, dispatcher, &logger)
	otpUsecase := usecase.NewOtpUsecase(otpRepo, dispatcher, &logger)
	taskUsecase := usecase.NewTaskUsecase(taskRepo, dispatcher, &logger)

	sweeper := job.NewReminderSweeper(taskRepo, userRepo, dispatcher, &logger, cfg.ReminderInterval)
	go sweeper.Run(ctx)

	validator, err := handler.NewRequestValidator()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build request validator")
	}

	authHandler := handler.NewAuthHandler(
		authUsecase,
		otpUsecase,
		validator,
		&logger,
		cfg.IsProduction(),
		int(cfg.Token.RefreshTTL.Seconds()),
	)
	taskHandler := handler.NewTaskHandler(taskUsecase, validator, &logger)
	requireAuth := handler.RequireAuth(tokens, authUsecase)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(authHandler, taskHandler, requireAuth, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsProduction() {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// newSender picks the mail provider once at startup: the HTTP API provider
// when an API key is configured, SMTP otherwise.
func newSender(cfg *config.Config, logger *zerolog.Logger) mailer.Sender {
	if cfg.SendGrid.APIKey != "" {
		logger.Info().Msg("using sendgrid mail provider")
		return mailer.NewSendGridSender(cfg.SendGrid.APIKey, cfg.EmailFrom, cfg.SendGrid.BaseURL)
	}

	logger.Info().Str("host", cfg.SMTP.Host).Msg("using smtp mail provider")
	return mailer.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.EmailFrom)
}
