package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/database"
	"github.com/yamini7043/HealthCare-MediBotAI/internal/server"
)

func gracefulShutdown(ctx context.Context, apiServer *http.Server, logger zerolog.Logger) error {
	// Block until the interrupt signal cancels the context.
	<-ctx.Done()

	logger.Info().Msg("shutting down gracefully, press Ctrl+C again to force")

	// The context informs the server it has 5 seconds to finish the
	// requests it is currently handling.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown with error")
		return err
	}

	logger.Info().Msg("Server exiting")
	return nil
}

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// The consultation-history store is optional; the pipeline runs without
	// it when DATABASE_URL is absent.
	dbService, err := database.NewService()
	if err != nil {
		logger.Warn().Err(err).Msg("Running without consultation history")
		dbService = nil
	} else {
		defer dbService.Close()
	}

	apiServer := server.NewServer(logger, dbService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", apiServer.Addr).Msg("Starting API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return gracefulShutdown(ctx, apiServer, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("Server exited with error")
	}
	logger.Info().Msg("Graceful shutdown complete.")
}
