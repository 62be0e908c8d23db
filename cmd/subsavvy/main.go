package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/subsavvy/subsavvy/internal/config"
	"github.com/subsavvy/subsavvy/internal/http/handlers/subscriptions"
	"github.com/subsavvy/subsavvy/internal/logger"
	service "github.com/subsavvy/subsavvy/internal/services/subscriptions"
	"github.com/subsavvy/subsavvy/internal/storage/postgresql"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(cfg.Env)
	log.Info("starting subsavvy", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	db, err := postgresql.New(cfg.PostgreSQL)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("failed to close postgresql connection", slog.Any("error", err))
		}
	}()

	subscriptionsService := service.New(db, log)
	handler := subscriptions.New(subscriptionsService, log)

	mux := http.NewServeMux()
	handler.Register(mux)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.Timeout)
		defer cancel()

		log.Info("shutting down http server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown http server", slog.Any("error", err))
		}
	}()

	log.Info("starting http server", slog.String("address", cfg.HTTPServer.Address))

	if err := server.ListenAndServe(); err != nil {
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", slog.Any("error", err))
		}
	}
}
