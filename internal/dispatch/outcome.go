// Package dispatch implements the message resolution and blacklist-filtered
// dispatch pipeline: classification of inbound payloads, template loading and
// parameter substitution, recipient filtering, and per-record delivery with
// failure isolation.
package dispatch

import (
	"time"

	"mailroom/internal/mail"
	"mailroom/internal/types"
)

// OutcomeStatus is the terminal state of a single dispatched record.
type OutcomeStatus string

const (
	// OutcomeSent means the record resolved and the sender accepted it.
	OutcomeSent OutcomeStatus = "sent"
	// OutcomeSkipped means every recipient was blacklisted or malformed.
	// A skip is reported for observability but is not a failure.
	OutcomeSkipped OutcomeStatus = "skipped"
	// OutcomeFailed means classification, resolution, or sending failed.
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the per-record result of a dispatch pass. Exactly one Outcome is
// produced per input envelope; records are never retried within the same pass.
type Outcome struct {
	MessageID  string        `json:"message_id"`
	Status     OutcomeStatus `json:"status"`
	DeliveryID string        `json:"delivery_id,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Err        error         `json:"-"`
}

// ResolvedMessage is a send-ready message: variant differences erased,
// template expanded, recipient lists filtered.
type ResolvedMessage struct {
	Sender      string
	To          []string
	CC          []string
	BCC         []string
	ReplyTo     []string
	Subject     string
	HTMLBody    string
	TextBody    string
	Priority    mail.Priority
	SentDate    time.Time
	Headers     map[string]string
	Attachments []mail.Attachment
}

// outcomeForError maps a pipeline error to the Outcome for its record.
// no_valid_recipients is the one non-error terminal state: the record is
// reported as skipped rather than failed.
func outcomeForError(messageID string, err error) Outcome {
	if types.CodeOf(err) == types.ErrCodeNoValidRecipients {
		return Outcome{
			MessageID: messageID,
			Status:    OutcomeSkipped,
			Reason:    string(types.ErrCodeNoValidRecipients),
			Err:       err,
		}
	}
	return Outcome{
		MessageID: messageID,
		Status:    OutcomeFailed,
		Reason:    string(types.CodeOf(err)),
		Err:       err,
	}
}
