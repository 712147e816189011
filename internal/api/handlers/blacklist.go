// Package handlers contains the HTTP handler implementations for the mailroom
// admin API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mailroom/internal/blacklist"
	"mailroom/internal/core"
	"mailroom/internal/mail"
)

// BlacklistAdmin defines the service contract for blacklist administration.
// Defined locally following the handler injection pattern; this avoids
// coupling to concrete types and enables test mocking.
type BlacklistAdmin interface {
	Add(ctx context.Context, rawEmail string) (*blacklist.Entry, error)
}

// --- Request/Response Models ---

// AddBlacklistRequest is the request body for POST /notification.
// Field names follow the established wire contract (PascalCase).
type AddBlacklistRequest struct {
	Email string `json:"Email"`
}

// AddBlacklistResponse is the response body returned on successful creation.
type AddBlacklistResponse struct {
	IsSuccessful bool   `json:"is_successful"`
	Email        string `json:"email"`
}

// --- Handler ---

// BlacklistHandler manages blacklist suppression entries.
type BlacklistHandler struct {
	service BlacklistAdmin
	logger  *slog.Logger
}

// NewBlacklistHandler creates a new BlacklistHandler with the provided dependencies.
func NewBlacklistHandler(service BlacklistAdmin, l *slog.Logger) *BlacklistHandler {
	if l == nil {
		l = slog.Default()
	}
	return &BlacklistHandler{
		service: service,
		logger:  l,
	}
}

// RegisterRoutes mounts blacklist routes onto the provided router.
func (h *BlacklistHandler) RegisterRoutes(r chi.Router) {
	r.Post("/notification", h.Add)
}

// Add handles POST /notification.
//
// Flow:
//  1. Decode and strictly validate the request body.
//  2. Normalize the address and create the suppression entry.
//  3. Report the store outcome faithfully: a backend failure surfaces as
//     502 store_unavailable rather than a fabricated success.
//
// Responses:
//   - 201 {"is_successful": true, "email": <normalized>} on success
//   - 400 invalid_request on malformed body or invalid email syntax
//   - 502 store_unavailable when the blacklist backend rejects the write
func (h *BlacklistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddBlacklistRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	entry, err := h.service.Add(r.Context(), req.Email)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "blacklist entry created",
		"email", mail.RedactEmail(entry.Email),
	)

	core.JSON(w, r, http.StatusCreated, AddBlacklistResponse{
		IsSuccessful: true,
		Email:        entry.Email,
	})
}

// Compile-time assertion that the concrete service satisfies the local contract.
var _ BlacklistAdmin = (*blacklist.AdminService)(nil)
