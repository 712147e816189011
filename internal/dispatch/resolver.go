package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"mailroom/internal/blacklist"
	"mailroom/internal/mail"
	"mailroom/internal/storage"
	"mailroom/internal/types"
)

// defaultLookupLimit bounds concurrent blacklist reads per record.
const defaultLookupLimit = 8

// Resolver turns a classified message into a send-ready ResolvedMessage.
// For templated messages it loads the template body and substitutes
// parameters; for both variants it filters every recipient list against the
// blacklist.
type Resolver struct {
	templates   storage.TemplateLoader
	blacklist   blacklist.Store
	lookupLimit int
	logger      *slog.Logger
}

// ResolverConfig holds the dependencies needed to create a Resolver.
type ResolverConfig struct {
	Templates storage.TemplateLoader
	Blacklist blacklist.Store
	// LookupLimit bounds concurrent blacklist reads per record.
	// Optional; defaults to 8.
	LookupLimit int
	Logger      *slog.Logger
}

// NewResolver creates a Resolver with the given dependencies.
func NewResolver(cfg ResolverConfig) *Resolver {
	limit := cfg.LookupLimit
	if limit <= 0 {
		limit = defaultLookupLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		templates:   cfg.Templates,
		blacklist:   cfg.Blacklist,
		lookupLimit: limit,
		logger:      logger,
	}
}

// Resolve produces the send-ready form of msg.
//
// Failure modes:
//   - template_not_found: templated message whose key has no stored body
//   - store_unavailable: a blacklist read failed
//   - no_valid_recipients: every recipient list is empty after filtering;
//     the dispatcher treats this as a skip, not a failure
func (r *Resolver) Resolve(ctx context.Context, msg mail.Message) (*ResolvedMessage, error) {
	base := msg.Base()

	resolved := &ResolvedMessage{
		Sender:   base.Sender,
		Priority: base.Priority,
		SentDate: base.SentDate,
		Headers:  base.Headers,
	}

	switch m := msg.(type) {
	case *mail.DirectMessage:
		resolved.Subject = m.Subject
		resolved.HTMLBody = m.HTMLBody
		resolved.TextBody = m.TextBody
		resolved.Attachments = m.Attachments

	case *mail.TemplatedMessage:
		body, err := r.templates.Load(ctx, m.Template)
		if err != nil {
			return nil, err
		}
		resolved.Subject = m.Subject
		resolved.HTMLBody = substituteParams(string(body), m.Parameters)
		resolved.Attachments = m.Attachments

	default:
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("unknown message kind %q", msg.Kind()), nil)
	}

	// Filter each recipient list independently; relative order within each
	// list is preserved.
	var err error
	if resolved.To, err = r.filterAddresses(ctx, base.To); err != nil {
		return nil, err
	}
	if resolved.CC, err = r.filterAddresses(ctx, base.CC); err != nil {
		return nil, err
	}
	if resolved.BCC, err = r.filterAddresses(ctx, base.BCC); err != nil {
		return nil, err
	}
	if resolved.ReplyTo, err = r.filterAddresses(ctx, base.ReplyTo); err != nil {
		return nil, err
	}

	if len(resolved.To) == 0 && len(resolved.CC) == 0 && len(resolved.BCC) == 0 && len(resolved.ReplyTo) == 0 {
		return nil, types.NewAppError(types.ErrCodeNoValidRecipients,
			"no recipients remain after validation and blacklist filtering", nil)
	}

	return resolved, nil
}

// filterAddresses drops syntactically invalid and blacklisted addresses from
// the list. Invalid entries are logged and skipped, never fatal. Blacklist
// lookups run concurrently up to lookupLimit; results are collected by index
// so the surviving addresses keep their original relative order. A store read
// failure aborts the whole record.
//
// Filtering is idempotent: a list containing only valid, non-blacklisted
// addresses passes through unchanged.
func (r *Resolver) filterAddresses(ctx context.Context, list []string) ([]string, error) {
	if len(list) == 0 {
		return list, nil
	}

	type candidate struct {
		idx int
		key string
	}

	candidates := make([]candidate, 0, len(list))
	for i, raw := range list {
		key, err := mail.NormalizeAddress(raw)
		if err != nil {
			r.logger.WarnContext(ctx, "dropping invalid recipient address",
				"address", mail.RedactEmail(raw),
			)
			continue
		}
		candidates = append(candidates, candidate{idx: i, key: key})
	}

	keep := make([]bool, len(list))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.lookupLimit)
	for _, c := range candidates {
		g.Go(func() error {
			entry, err := r.blacklist.Read(gctx, c.key)
			if err != nil {
				return err
			}
			if entry != nil {
				r.logger.InfoContext(gctx, "dropping blacklisted recipient",
					"address", mail.RedactEmail(c.key),
				)
				return nil
			}
			keep[c.idx] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	filtered := make([]string, 0, len(candidates))
	for i, raw := range list {
		if keep[i] {
			filtered = append(filtered, raw)
		}
	}
	return filtered, nil
}

// substituteParams replaces every {{name}} placeholder in body with the
// corresponding parameter value. Substitution is best-effort text
// replacement, not a template engine: placeholders without a matching
// parameter are left verbatim, and substitution itself cannot fail.
func substituteParams(body string, params map[string]string) string {
	for name, value := range params {
		body = strings.ReplaceAll(body, "{{"+name+"}}", value)
	}
	return body
}
