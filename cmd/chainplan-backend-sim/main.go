// Command chainplan-backend-sim serves plans over the plan service API and
// advances them one status per refresh, for exercising chainplan end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var (
	configPath string
	listenAddr string
	logLevel   string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to plan fixture YAML")
	flag.StringVar(&listenAddr, "addr", "127.0.0.1:8787", "Listen address")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug/info/warn/error)")
}

func main() {
	flag.Parse()

	if envConfig := os.Getenv("CHAINPLAN_SIM_CONFIG"); envConfig != "" && configPath == "" {
		configPath = envConfig
	}
	if envLevel := os.Getenv("CHAINPLAN_SIM_LOG_LEVEL"); envLevel != "" {
		logLevel = envLevel
	}

	logger := setupLogger(logLevel)

	config := NewDefaultSimConfig()
	if configPath != "" {
		var err error
		config, err = LoadConfig(configPath)
		if err != nil {
			logger.Error("failed to load config", "path", configPath, "error", err)
			os.Exit(1)
		}
	}

	backend := NewBackend(config, logger)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           backend.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("backend simulator listening", "addr", listenAddr, "plans", len(config.Plans))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("simulator error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
