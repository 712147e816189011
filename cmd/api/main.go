// Package main is the entry point for the mailroom admin API.
//
// It initializes the configuration, builds the HTTP server with the core
// chassis (middleware, routing, health checks), wires the blacklist admin
// handler, and starts listening for requests.
//
// In Lambda mode (detected via the runtime environment), API Gateway V2
// events are bridged to the chi router via chiadapter. Otherwise, it runs as
// a standard HTTP server on the configured port with graceful shutdown via
// OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"

	"mailroom/internal/api/handlers"
	"mailroom/internal/blacklist"
	"mailroom/internal/config"
	"mailroom/internal/core"
	"mailroom/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// probe adapts a named check function to the core.HealthProbe interface.
type probe struct {
	name  string
	check func(ctx context.Context) error
}

func (p probe) Name() string                    { return p.name }
func (p probe) Check(ctx context.Context) error { return p.check(ctx) }

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("mailroom API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region),
	)
	if err != nil {
		return fmt.Errorf("loading AWS SDK config: %w", err)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}

	// Blacklist store and admin service.
	store := blacklist.NewDynamoStore(awsCfg, blacklist.DynamoStoreConfig{
		TableName: cfg.AWS.BlacklistTable,
		Logger:    logger,
	})
	adminService := blacklist.NewAdminService(store, nil, logger)

	// Template loader is only probed for health here; the worker owns loading.
	templates := storage.NewS3TemplateLoader(awsCfg, storage.S3TemplateLoaderConfig{
		Bucket: cfg.AWS.TemplateBucket,
		Logger: logger,
	})

	// Build the server.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	srv.HealthProbes = []core.HealthProbe{
		probe{name: "blacklist", check: store.Ping},
		probe{name: "templates", check: templates.Ping},
	}

	blacklistHandler := handlers.NewBlacklistHandler(adminService, logger)
	srv.RouteRegistrars = append(srv.RouteRegistrars, blacklistHandler.RegisterRoutes)

	// Mount all routes (middleware chain + endpoints + health).
	srv.MountRoutes()

	if isLambdaEnvironment() {
		return runLambda(srv, logger)
	}

	return runHTTPServer(srv, cfg, logger)
}

// isLambdaEnvironment returns true if the process is running inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runLambda starts the server in AWS Lambda mode, bridging API Gateway V2
// (HTTP API) events to the chi router.
func runLambda(srv *core.Server, logger *slog.Logger) error {
	logger.Info("starting in Lambda mode")
	adapter := chiadapter.NewV2(srv.Router())
	lambda.Start(adapter.ProxyWithContextV2)
	return nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
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

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
}
