package blacklist

import (
	"context"
	"log/slog"

	"mailroom/internal/mail"
	"mailroom/internal/types"
)

// AdminService validates and registers blacklist entries on behalf of the
// admin HTTP surface. It normalizes addresses to their canonical lowercase
// form before delegating to the Store.
type AdminService struct {
	store  Store
	clock  types.Clock
	logger *slog.Logger
}

// NewAdminService creates an AdminService. clock may be nil, in which case
// the real system clock is used.
func NewAdminService(store Store, clock types.Clock, logger *slog.Logger) *AdminService {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// Add normalizes rawEmail and registers it on the blacklist with the current
// timestamp. A syntactically invalid address yields an invalid_request error;
// store failures propagate so the caller's response reflects the true
// outcome. Adding an already-present address overwrites its timestamp.
func (s *AdminService) Add(ctx context.Context, rawEmail string) (*Entry, error) {
	email, err := mail.NormalizeAddress(rawEmail)
	if err != nil {
		return nil, err
	}

	entry := Entry{
		Email: email,
		Date:  s.clock.Now().Unix(),
	}

	if err := s.store.Create(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "failed to save blacklist entry",
			"email", mail.RedactEmail(email),
			"error", err,
		)
		return nil, err
	}

	s.logger.InfoContext(ctx, "address added to blacklist",
		"email", mail.RedactEmail(email),
	)

	return &entry, nil
}
