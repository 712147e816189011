package external

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"mailroom/internal/dispatch"
	"mailroom/internal/mail"
	"mailroom/internal/types"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockSESAPI struct {
	sendEmailFunc func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

func (m *mockSESAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	return m.sendEmailFunc(ctx, params, optFns...)
}

func resolvedMessage() *dispatch.ResolvedMessage {
	return &dispatch.ResolvedMessage{
		Sender:   "noreply@example.com",
		To:       []string{"to@example.com"},
		CC:       []string{"cc@example.com"},
		BCC:      []string{"bcc@example.com"},
		ReplyTo:  []string{"reply@example.com"},
		Subject:  "Subject line",
		HTMLBody: "<p>html</p>",
		TextBody: "text",
	}
}

// ---------------------------------------------------------------------------
// Send - Input Construction
// ---------------------------------------------------------------------------

func TestSend_BuildsExpectedInput(t *testing.T) {
	var captured *sesv2.SendEmailInput
	api := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("ses-msg-123")}, nil
		},
	}
	sender := NewSESSenderWithAPI(api, SESSenderConfig{ConfigSetName: "mailroom-tracking"})

	deliveryID, err := sender.Send(context.Background(), resolvedMessage())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deliveryID != "ses-msg-123" {
		t.Errorf("delivery id = %q", deliveryID)
	}

	if captured == nil {
		t.Fatal("SendEmail was not called")
	}
	if *captured.FromEmailAddress != "noreply@example.com" {
		t.Errorf("from = %q", *captured.FromEmailAddress)
	}
	if len(captured.Destination.ToAddresses) != 1 || captured.Destination.ToAddresses[0] != "to@example.com" {
		t.Errorf("to = %v", captured.Destination.ToAddresses)
	}
	if len(captured.Destination.CcAddresses) != 1 || captured.Destination.CcAddresses[0] != "cc@example.com" {
		t.Errorf("cc = %v", captured.Destination.CcAddresses)
	}
	if len(captured.Destination.BccAddresses) != 1 || captured.Destination.BccAddresses[0] != "bcc@example.com" {
		t.Errorf("bcc = %v", captured.Destination.BccAddresses)
	}
	if len(captured.ReplyToAddresses) != 1 || captured.ReplyToAddresses[0] != "reply@example.com" {
		t.Errorf("reply-to = %v", captured.ReplyToAddresses)
	}

	simple := captured.Content.Simple
	if *simple.Subject.Data != "Subject line" {
		t.Errorf("subject = %q", *simple.Subject.Data)
	}
	if *simple.Body.Html.Data != "<p>html</p>" {
		t.Errorf("html = %q", *simple.Body.Html.Data)
	}
	if *simple.Body.Text.Data != "text" {
		t.Errorf("text = %q", *simple.Body.Text.Data)
	}
	if *captured.ConfigurationSetName != "mailroom-tracking" {
		t.Errorf("config set = %q", *captured.ConfigurationSetName)
	}
}

func TestSend_EmptyBodiesOmitted(t *testing.T) {
	var captured *sesv2.SendEmailInput
	api := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("id")}, nil
		},
	}
	sender := NewSESSenderWithAPI(api, SESSenderConfig{})

	msg := resolvedMessage()
	msg.HTMLBody = ""
	msg.TextBody = "text only"

	if _, err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if captured.Content.Simple.Body.Html != nil {
		t.Error("empty html body should be omitted")
	}
	if captured.Content.Simple.Body.Text == nil {
		t.Error("text body should be present")
	}
	if captured.ConfigurationSetName != nil {
		t.Error("config set should be omitted when unconfigured")
	}
}

func TestSend_PriorityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		priority mail.Priority
		want     string
	}{
		{"high", mail.PriorityHigh, "1"},
		{"low", mail.PriorityLow, "5"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured *sesv2.SendEmailInput
			api := &mockSESAPI{
				sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
					captured = params
					return &sesv2.SendEmailOutput{MessageId: aws.String("id")}, nil
				},
			}
			sender := NewSESSenderWithAPI(api, SESSenderConfig{})

			msg := resolvedMessage()
			msg.Priority = tc.priority

			if _, err := sender.Send(context.Background(), msg); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			headers := captured.Content.Simple.Headers
			found := false
			for _, h := range headers {
				if *h.Name == "X-Priority" {
					found = true
					if *h.Value != tc.want {
						t.Errorf("X-Priority = %q, want %q", *h.Value, tc.want)
					}
				}
			}
			if !found {
				t.Error("X-Priority header missing")
			}
		})
	}
}

func TestSend_NormalPriorityAddsNoHeader(t *testing.T) {
	for _, priority := range []mail.Priority{mail.PriorityNormal, mail.Priority(99)} {
		var captured *sesv2.SendEmailInput
		api := &mockSESAPI{
			sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
				captured = params
				return &sesv2.SendEmailOutput{MessageId: aws.String("id")}, nil
			},
		}
		sender := NewSESSenderWithAPI(api, SESSenderConfig{})

		msg := resolvedMessage()
		msg.Priority = priority

		if _, err := sender.Send(context.Background(), msg); err != nil {
			t.Fatalf("priority %d: unexpected error: %v", priority, err)
		}
		if captured.Content.Simple.Headers != nil {
			t.Errorf("priority %d: headers = %v, want none", priority, captured.Content.Simple.Headers)
		}
	}
}

func TestSend_CallerHeadersForwarded(t *testing.T) {
	var captured *sesv2.SendEmailInput
	api := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("id")}, nil
		},
	}
	sender := NewSESSenderWithAPI(api, SESSenderConfig{})

	msg := resolvedMessage()
	msg.Headers = map[string]string{"X-Campaign": "spring"}

	if _, err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, h := range captured.Content.Simple.Headers {
		if *h.Name == "X-Campaign" && *h.Value == "spring" {
			found = true
		}
	}
	if !found {
		t.Errorf("caller header not forwarded: %v", captured.Content.Simple.Headers)
	}
}

// ---------------------------------------------------------------------------
// Send - Error Mapping
// ---------------------------------------------------------------------------

func TestSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		sesErr   error
		wantCode types.ErrorCode
	}{
		{"message rejected", &sestypes.MessageRejected{}, types.ErrCodeEmailBlocked},
		{"too many requests", &sestypes.TooManyRequestsException{}, types.ErrCodeUpstreamRateLimited},
		{"sending paused", &sestypes.SendingPausedException{}, types.ErrCodeUpstreamUnavailable},
		{"generic failure", errors.New("wire error"), types.ErrCodeEmailSend},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockSESAPI{
				sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
					return nil, tc.sesErr
				},
			}
			sender := NewSESSenderWithAPI(api, SESSenderConfig{})

			_, err := sender.Send(context.Background(), resolvedMessage())
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T", err)
			}
			if appErr.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", appErr.Code, tc.wantCode)
			}
		})
	}
}

// After more than five consecutive failures the breaker opens and subsequent
// sends fail fast without reaching the provider.
func TestSend_CircuitBreakerOpens(t *testing.T) {
	callCount := 0
	api := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			callCount++
			return nil, errors.New("provider down")
		},
	}
	sender := NewSESSenderWithAPI(api, SESSenderConfig{})

	for i := 0; i < 6; i++ {
		if _, err := sender.Send(context.Background(), resolvedMessage()); err == nil {
			t.Fatalf("send %d: expected error", i)
		}
	}

	_, err := sender.Send(context.Background(), resolvedMessage())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if code := types.CodeOf(err); code != types.ErrCodeUpstreamUnavailable {
		t.Errorf("code = %q, want %q", code, types.ErrCodeUpstreamUnavailable)
	}
	if callCount != 6 {
		t.Errorf("provider called %d times, want 6 (seventh send should fail fast)", callCount)
	}
}
