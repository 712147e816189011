// Package external provides the anti-corruption layer between mailroom domain
// logic and third-party delivery providers. Outbound calls are routed through
// a circuit breaker so a degraded provider cannot stall an entire batch.
package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sony/gobreaker/v2"

	"mailroom/internal/dispatch"
	"mailroom/internal/mail"
	"mailroom/internal/types"
)

// SESAPI defines the subset of the SES v2 client used by SESSender.
// Extracted for testability — tests can provide a mock implementation.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSenderConfig holds the configuration for creating an SESSender.
type SESSenderConfig struct {
	// ConfigSetName is the SES configuration set name for tracking.
	// Optional; if empty, no configuration set is used.
	ConfigSetName string
	// Logger for SES operations.
	Logger *slog.Logger
}

// SESSender implements dispatch.EmailSender using AWS SES v2.
// Authentication is handled via IAM roles (no API key required). The AWS SDK
// provides built-in retry logic; the circuit breaker sits above it so that a
// provider-wide outage fails fast instead of burning the Lambda timeout on
// every record.
type SESSender struct {
	api           SESAPI
	breaker       *gobreaker.CircuitBreaker[*sesv2.SendEmailOutput]
	configSetName string
	logger        *slog.Logger
}

func newSESBreaker() *gobreaker.CircuitBreaker[*sesv2.SendEmailOutput] {
	return gobreaker.NewCircuitBreaker[*sesv2.SendEmailOutput](gobreaker.Settings{
		Name:        "ses-send",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
}

// NewSESSender creates a new SESSender from an AWS config.
func NewSESSender(awsCfg aws.Config, cfg SESSenderConfig) *SESSender {
	return NewSESSenderWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESSenderWithAPI creates an SESSender with a pre-configured SESAPI.
// Useful for testing with a mock SES interface.
func NewSESSenderWithAPI(api SESAPI, cfg SESSenderConfig) *SESSender {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SESSender{
		api:           api,
		breaker:       newSESBreaker(),
		configSetName: cfg.ConfigSetName,
		logger:        logger,
	}
}

// Send transmits a resolved message using AWS SES v2 SendEmail with simple
// content (Subject, Body.Html, Body.Text). The input carries pre-rendered
// content; no server-side templates.
//
// Attachments are not supported by SES simple content; they are logged and
// skipped rather than failing the whole message.
//
// Error mapping:
//   - circuit breaker open → ErrCodeUpstreamUnavailable
//   - MessageRejected → ErrCodeEmailBlocked
//   - TooManyRequestsException → ErrCodeUpstreamRateLimited
//   - SendingPausedException → ErrCodeUpstreamUnavailable
//   - Other → ErrCodeEmailSend
func (s *SESSender) Send(ctx context.Context, msg *dispatch.ResolvedMessage) (string, error) {
	emailInput := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.Sender),
		Destination: &sestypes.Destination{
			ToAddresses:  msg.To,
			CcAddresses:  msg.CC,
			BccAddresses: msg.BCC,
		},
		ReplyToAddresses: msg.ReplyTo,
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &sestypes.Body{},
			},
		},
	}

	// Set HTML body if provided.
	if msg.HTMLBody != "" {
		emailInput.Content.Simple.Body.Html = &sestypes.Content{
			Data:    aws.String(msg.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	// Set plaintext body if provided.
	if msg.TextBody != "" {
		emailInput.Content.Simple.Body.Text = &sestypes.Content{
			Data:    aws.String(msg.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	emailInput.Content.Simple.Headers = buildHeaders(msg)

	// Set configuration set for tracking if configured.
	if s.configSetName != "" {
		emailInput.ConfigurationSetName = aws.String(s.configSetName)
	}

	if len(msg.Attachments) > 0 {
		s.logger.WarnContext(ctx, "attachments are not supported with simple content; skipping",
			"attachment_count", len(msg.Attachments),
		)
	}

	result, err := s.breaker.Execute(func() (*sesv2.SendEmailOutput, error) {
		return s.api.SendEmail(ctx, emailInput)
	})
	if err != nil {
		return "", mapSESError(err)
	}

	msgID := ""
	if result.MessageId != nil {
		msgID = *result.MessageId
	}

	return msgID, nil
}

// buildHeaders converts message priority and caller-supplied headers into SES
// message headers. Priority maps to the conventional X-Priority value.
func buildHeaders(msg *dispatch.ResolvedMessage) []sestypes.MessageHeader {
	headers := make([]sestypes.MessageHeader, 0, len(msg.Headers)+1)

	// Unknown priority values are treated as normal and add no header.
	switch msg.Priority {
	case mail.PriorityHigh:
		headers = append(headers, sestypes.MessageHeader{
			Name:  aws.String("X-Priority"),
			Value: aws.String("1"),
		})
	case mail.PriorityLow:
		headers = append(headers, sestypes.MessageHeader{
			Name:  aws.String("X-Priority"),
			Value: aws.String("5"),
		})
	}

	for name, value := range msg.Headers {
		headers = append(headers, sestypes.MessageHeader{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}

	if len(headers) == 0 {
		return nil
	}
	return headers
}

// mapSESError translates AWS SES errors into domain AppErrors.
func mapSESError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			"circuit breaker is open; email provider unavailable",
			err,
		)
	}

	var msgRejected *sestypes.MessageRejected
	if errors.As(err, &msgRejected) {
		return types.NewAppError(
			types.ErrCodeEmailBlocked,
			fmt.Sprintf("SES rejected message: %v", err),
			err,
		)
	}

	var tooManyReqs *sestypes.TooManyRequestsException
	if errors.As(err, &tooManyReqs) {
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("SES rate limit exceeded: %v", err),
			err,
		)
	}

	var sendingPaused *sestypes.SendingPausedException
	if errors.As(err, &sendingPaused) {
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("SES account sending paused: %v", err),
			err,
		)
	}

	return types.NewAppError(
		types.ErrCodeEmailSend,
		fmt.Sprintf("SES error: %v", err),
		err,
	)
}

// Compile-time assertion that SESSender satisfies dispatch.EmailSender.
var _ dispatch.EmailSender = (*SESSender)(nil)
