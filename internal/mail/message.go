// Package mail defines the email message model shared by the dispatch
// pipeline, the queue publisher, and the admin surface. Messages arrive as
// JSON payloads on the notification topic and come in two mutually exclusive
// shapes: a DirectMessage carrying literal bodies, and a TemplatedMessage
// referencing a stored template plus substitution parameters.
package mail

import (
	"time"

	"mailroom/internal/types"
)

// Kind discriminates the two message variants.
type Kind string

const (
	KindDirect    Kind = "direct"
	KindTemplated Kind = "templated"
)

// Priority is the delivery priority of a message. Wire values match the
// upstream producers' integer enum: 0 = Normal, 1 = Low, 2 = High.
type Priority int

const (
	PriorityNormal Priority = 0
	PriorityLow    Priority = 1
	PriorityHigh   Priority = 2
)

// String returns a human-readable priority name. Unknown wire values are
// reported as "normal" since that is how they are treated at send time.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// Attachment is a file attached to a message. Content is base64 in JSON.
type Attachment struct {
	Name        string `json:"Name"`
	ContentType string `json:"ContentType"`
	Content     []byte `json:"Content"`
}

// MessageBase holds the addressing fields common to both message variants.
// Each address list is independently nullable: a nil slice means "not
// specified" and serializes as JSON null, which is distinct from an empty
// list. Field names are PascalCase to match the producers' wire contract.
type MessageBase struct {
	Sender   string            `json:"Sender"`
	To       []string          `json:"To"`
	CC       []string          `json:"CC"`
	BCC      []string          `json:"BCC"`
	ReplyTo  []string          `json:"ReplyTo"`
	Priority Priority          `json:"Priority"`
	SentDate time.Time         `json:"SentDate"`
	Headers  map[string]string `json:"Headers"`
}

// Base returns the shared addressing fields. Returning a pointer lets the
// resolver rewrite recipient lists in place during blacklist filtering.
func (b *MessageBase) Base() *MessageBase { return b }

// HasRecipients reports whether any recipient-bearing list is non-empty.
func (b *MessageBase) HasRecipients() bool {
	return len(b.To) > 0 || len(b.CC) > 0 || len(b.BCC) > 0 || len(b.ReplyTo) > 0
}

// validateSender enforces that Sender is present and syntactically valid.
// Failures surface as decode errors: a message without a usable sender was
// never a well-formed message.
func (b *MessageBase) validateSender() error {
	if b.Sender == "" {
		return types.NewAppError(types.ErrCodeMessageDecode, "message is missing required field 'Sender'", nil)
	}
	if _, err := NormalizeAddress(b.Sender); err != nil {
		return types.NewAppError(types.ErrCodeMessageDecode, "message 'Sender' is not a valid email address", err)
	}
	return nil
}

// DirectMessage is a fully specified email: subject and literal bodies.
type DirectMessage struct {
	MessageBase
	Subject     string       `json:"Subject"`
	HTMLBody    string       `json:"HtmlBody"`
	TextBody    string       `json:"TextBody"`
	Attachments []Attachment `json:"Attachments"`
}

// Kind returns KindDirect.
func (m *DirectMessage) Kind() Kind { return KindDirect }

// Validate checks the structural invariants of a decoded DirectMessage.
// Sender must be present and syntactically valid; Subject must be present.
func (m *DirectMessage) Validate() error {
	if err := m.validateSender(); err != nil {
		return err
	}
	if m.Subject == "" {
		return types.NewAppError(types.ErrCodeMessageDecode, "message is missing required field 'Subject'", nil)
	}
	return nil
}

// TemplatedMessage references a stored template by key; the body is produced
// by loading the template and substituting Parameters into it.
type TemplatedMessage struct {
	MessageBase
	Subject     string            `json:"Subject"`
	Template    string            `json:"Template"`
	Parameters  map[string]string `json:"Parameters"`
	Attachments []Attachment      `json:"Attachments"`
}

// Kind returns KindTemplated.
func (m *TemplatedMessage) Kind() Kind { return KindTemplated }

// Validate checks the structural invariants of a decoded TemplatedMessage.
func (m *TemplatedMessage) Validate() error {
	if err := m.validateSender(); err != nil {
		return err
	}
	if m.Template == "" {
		return types.NewAppError(types.ErrCodeMessageDecode, "message is missing required field 'Template'", nil)
	}
	return nil
}

// Message is the decoded form of an inbound payload: exactly one of the two
// variants. The dispatch pipeline owns each decoded Message exclusively; there
// is no cross-record sharing.
type Message interface {
	Kind() Kind
	Base() *MessageBase
	Validate() error
}

// Compile-time assertions that both variants implement Message.
var (
	_ Message = (*DirectMessage)(nil)
	_ Message = (*TemplatedMessage)(nil)
)
