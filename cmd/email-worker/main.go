// Package main is the entrypoint for the Email Worker Lambda function.
//
// The Email Worker consumes notification events from the delivery SNS topic,
// classifies each record as a direct or templated message, resolves templates
// and blacklist suppressions, and delivers via SES. Each invocation receives
// a batch of SNS records; records are processed independently and every
// record yields a structured outcome (sent / skipped / failed).
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Load service configuration (fail fast on invalid config).
//  3. Load AWS SDK configuration.
//  4. Initialize S3 template loader, DynamoDB blacklist store.
//  5. Initialize SES sender (stub in local mode).
//  6. Initialize CloudWatch metrics.
//  7. Register handler and call lambda.Start.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"mailroom/internal/blacklist"
	"mailroom/internal/config"
	"mailroom/internal/dispatch"
	"mailroom/internal/external"
	"mailroom/internal/storage"
	"mailroom/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Error, and Warn directly but With returns
// *slog.Logger, not types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// Handler holds the dependencies for the email worker Lambda handler.
type Handler struct {
	dispatcher *dispatch.Dispatcher
	logger     types.Logger
}

// Handle processes an SNS event containing one or more email messages.
// The dispatcher converts every record into an outcome and never raises;
// the handler only summarizes the batch for observability. SNS triggers
// have no partial-batch retry protocol, so the returned error is always nil.
func (h *Handler) Handle(ctx context.Context, snsEvent events.SNSEvent) error {
	envelopes := dispatch.EnvelopesFromSNS(snsEvent)
	outcomes := h.dispatcher.Dispatch(ctx, envelopes)

	var sent, skipped, failed int
	for _, o := range outcomes {
		switch o.Status {
		case dispatch.OutcomeSent:
			sent++
		case dispatch.OutcomeSkipped:
			skipped++
		case dispatch.OutcomeFailed:
			failed++
		}
	}

	h.logger.Info("batch processed",
		"records", len(envelopes),
		"sent", sent,
		"skipped", skipped,
		"failed", failed,
	)

	return nil
}

// parseLogLevel maps a configuration string to a slog.Level.
func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	// Bootstrap logger at info level; replaced once config is loaded.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Email Worker Lambda initializing (cold start)")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	typedLogger := &slogAdapter{logger: logger}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region),
	)
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}

	// Template loader and blacklist store.
	templates := storage.NewS3TemplateLoader(awsCfg, storage.S3TemplateLoaderConfig{
		Bucket: cfg.AWS.TemplateBucket,
		Logger: logger,
	})
	store := blacklist.NewDynamoStore(awsCfg, blacklist.DynamoStoreConfig{
		TableName: cfg.AWS.BlacklistTable,
		Logger:    logger,
	})

	// Email sender: SES in deployed environments, stub in local mode so the
	// worker can run without verified SES identities.
	var sender dispatch.EmailSender
	if cfg.IsLocal() {
		logger.Warn("APP_ENV=local: using stub email sender")
		sender = external.NewStubEmailSender(logger)
	} else {
		sender = external.NewSESSender(awsCfg, external.SESSenderConfig{
			ConfigSetName: cfg.Email.ConfigSetName,
			Logger:        logger,
		})
	}

	// Metrics.
	var metrics dispatch.Metrics = dispatch.NoopMetrics{}
	if cfg.Observability.EnableMetrics && !cfg.IsLocal() {
		metrics = dispatch.NewCloudWatchMetrics(
			cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace,
			logger,
		)
	}

	resolver := dispatch.NewResolver(dispatch.ResolverConfig{
		Templates:   templates,
		Blacklist:   store,
		LookupLimit: cfg.Dispatch.LookupConcurrency,
		Logger:      logger,
	})

	dispatcher := dispatch.NewDispatcher(dispatch.DispatcherConfig{
		Resolver: resolver,
		Sender:   sender,
		Metrics:  metrics,
		FanOut:   cfg.Dispatch.FanOut,
		Logger:   logger,
	})

	handler := &Handler{
		dispatcher: dispatcher,
		logger:     typedLogger,
	}

	logger.Info("Email Worker Lambda initialized",
		"template_bucket", cfg.AWS.TemplateBucket,
		"blacklist_table", cfg.AWS.BlacklistTable,
		"fan_out", cfg.Dispatch.FanOut,
		"metric_namespace", cfg.Observability.MetricNamespace,
		"version", cfg.Build.Version,
	)

	// Local mode: read a JSON SNS event from stdin instead of starting the
	// Lambda runtime. This enables local integration testing without the
	// AWS Lambda RIE.
	// Usage: echo '{"Records":[{"Sns":{"MessageId":"1","Message":"{...}"}}]}' | go run cmd/email-worker/main.go
	if cfg.IsLocal() {
		logger.Info("APP_ENV=local: reading SNS event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("Failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(payload) == 0 {
			logger.Error("No input received on stdin")
			os.Exit(1)
		}
		var snsEvent events.SNSEvent
		if err := json.Unmarshal(payload, &snsEvent); err != nil {
			logger.Error("Failed to parse stdin as SNS event", "error", err)
			os.Exit(1)
		}
		if err := handler.Handle(context.Background(), snsEvent); err != nil {
			logger.Error("Handler execution failed", "error", err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "done")
		return
	}

	lambda.Start(handler.Handle)
}

// Compile-time assertion that slogAdapter implements types.Logger.
var _ types.Logger = (*slogAdapter)(nil)
