package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/menta2k/ssimdiff/internal/config"
	"github.com/menta2k/ssimdiff/internal/logging"
	"github.com/menta2k/ssimdiff/internal/server"
	"github.com/menta2k/ssimdiff/pkg/analyzer"
)

func main() {
	var cfgPath string
	var debug bool
	flag.StringVar(&cfgPath, "config", "", "JSON config file")
	flag.BoolVar(&debug, "debug", false, "log every request")
	flag.Parse()

	logger := logging.NewLogger("ssimdiff-server")
	logger.SetDebug(debug)

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to load .env", "err", err)
	}

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			logger.Error("failed to load config", "path", cfgPath, "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		logger.Error("invalid environment", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	srv := server.New(analyzer.NewWithConfig(cfg.AnalyzerConfig()), cfg.Server, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting",
			"addr", cfg.Server.Addr,
			"max_upload_mb", cfg.Server.MaxUploadMB,
			"min_area", cfg.Pipeline.MinArea,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
}
