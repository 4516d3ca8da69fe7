// Package main is the entry point for the Saver allocation dashboard. The
// application stores a daily price history for the market asset, derives
// rolling-return distributions from it, and serves safety-first allocation
// analysis plus charts over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fundbuilder/saver/internal/config"
	"github.com/fundbuilder/saver/internal/database"
	"github.com/fundbuilder/saver/internal/modules/analysis"
	"github.com/fundbuilder/saver/internal/modules/charts"
	"github.com/fundbuilder/saver/internal/modules/prices"
	"github.com/fundbuilder/saver/internal/server"
	"github.com/fundbuilder/saver/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Int("port", cfg.Port).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting Saver")

	db, err := database.New(database.Config{
		Path: cfg.DatabasePath(),
		Name: "prices",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open price database")
	}
	defer db.Close()

	priceRepo := prices.NewRepository(db.Conn(), log)
	priceImporter := prices.NewImporter(log)

	// Seed the database from the configured CSV on first run. Subsequent runs
	// keep whatever history is already stored.
	if cfg.CSVPath != "" {
		if err := seedPrices(priceRepo, priceImporter, cfg.CSVPath); err != nil {
			log.Fatal().Err(err).Str("path", cfg.CSVPath).Msg("Failed to seed price history")
		}
	}

	analysisSvc := analysis.NewService(priceRepo, log)
	chartSvc := charts.NewService(log)

	srv := server.New(server.Config{
		Log:             log,
		Cfg:             cfg,
		PriceRepo:       priceRepo,
		PriceImporter:   priceImporter,
		AnalysisService: analysisSvc,
		ChartService:    chartSvc,
	})

	// The HTTP server runs in a goroutine so the main thread can block on the
	// shutdown signal.
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// In-flight analysis requests get up to 10 seconds to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// seedPrices imports the CSV into an empty database. A populated database is
// left untouched so manual imports via the API are not clobbered on restart.
func seedPrices(repo *prices.Repository, importer *prices.Importer, path string) error {
	count, err := repo.Count()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	series, err := importer.ImportFile(path)
	if err != nil {
		return err
	}
	return repo.Save(series)
}
