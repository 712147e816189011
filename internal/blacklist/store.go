package blacklist

import "context"

// Store is the minimal CRUD capability contract over the blacklist backend.
// Implementations must tolerate concurrent reads; creates are idempotent
// overwrites keyed by the lowercase email, so no write-write conflict
// resolution is needed.
type Store interface {
	// Create inserts or overwrites the entry keyed by entry.Email.
	Create(ctx context.Context, entry Entry) error

	// Read returns the entry for the given lowercase email, or (nil, nil)
	// when the address is not blacklisted.
	Read(ctx context.Context, email string) (*Entry, error)

	// Delete removes the entry for the given lowercase email. It reports
	// whether an entry existed.
	Delete(ctx context.Context, email string) (bool, error)

	// Ping verifies the backend is reachable. Used by the health endpoint.
	Ping(ctx context.Context) error
}
