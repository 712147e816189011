package external

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"mailroom/internal/dispatch"
	"mailroom/internal/mail"
)

// ---------------------------------------------------------------------------
// Stub Implementations
//
// Stub implementations allow the application to boot in local mode without
// real AWS credentials. They log all actions and return predictable, safe
// default values.
// ---------------------------------------------------------------------------

// StubEmailSender implements dispatch.EmailSender by logging the resolved
// message and returning a fake delivery ID. Used when APP_ENV=local.
type StubEmailSender struct {
	logger *slog.Logger
}

// NewStubEmailSender creates a new StubEmailSender.
func NewStubEmailSender(logger *slog.Logger) *StubEmailSender {
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg *dispatch.ResolvedMessage) (string, error) {
	recipients := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		recipients = append(recipients, mail.RedactEmail(addr))
	}

	s.logger.InfoContext(ctx, "stub: Send email called",
		"from", mail.RedactEmail(msg.Sender),
		"to", recipients,
		"subject", msg.Subject,
	)
	return fmt.Sprintf("msg_stub_%s", uuid.NewString()), nil
}

// ---------------------------------------------------------------------------
// Interface Compliance
// ---------------------------------------------------------------------------

var _ dispatch.EmailSender = (*StubEmailSender)(nil)
