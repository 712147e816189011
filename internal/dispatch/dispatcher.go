package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"mailroom/internal/mail"
	"mailroom/internal/types"
)

// defaultFanOut bounds concurrent record processing within a batch.
const defaultFanOut = 4

// EmailSender is the capability contract for delivering a resolved message.
type EmailSender interface {
	// Send delivers the message and returns the provider's delivery
	// identifier for correlation.
	Send(ctx context.Context, msg *ResolvedMessage) (deliveryID string, err error)
}

// Dispatcher runs the classify → resolve → send pipeline over an ordered
// batch of raw envelopes. Records are independent: each failure is caught at
// the record boundary and converted to a Failed outcome, and processing
// continues with the remaining records. The dispatcher never raises to its
// caller: the upstream trigger has no per-batch retry semantics worth
// exercising, and re-running a batch would resend already-sent messages.
//
// Delivery is therefore at most one attempt per record in normal operation.
// If the process dies mid-batch, in-flight records are abandoned without
// rollback and the trigger's redelivery makes the overall semantic
// at-least-once across a crash.
type Dispatcher struct {
	resolver *Resolver
	sender   EmailSender
	metrics  Metrics
	fanOut   int
	logger   *slog.Logger
}

// DispatcherConfig holds the dependencies needed to create a Dispatcher.
type DispatcherConfig struct {
	Resolver *Resolver
	Sender   EmailSender
	// Metrics records per-record outcomes. Optional; defaults to a no-op.
	Metrics Metrics
	// FanOut bounds concurrent record processing. Optional; defaults to 4.
	// The effective limit is never larger than the batch itself.
	FanOut int
	Logger *slog.Logger
}

// NewDispatcher creates a Dispatcher with the given dependencies.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	fanOut := cfg.FanOut
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		resolver: cfg.Resolver,
		sender:   cfg.Sender,
		metrics:  metrics,
		fanOut:   fanOut,
		logger:   logger,
	}
}

// Dispatch processes every envelope in the batch and returns one outcome per
// envelope, in input order, regardless of completion order. Records may run
// concurrently up to the configured fan-out; outcomes land in a pre-sized
// slice indexed by record position so ordering never depends on scheduling.
func (d *Dispatcher) Dispatch(ctx context.Context, envelopes []Envelope) []Outcome {
	outcomes := make([]Outcome, len(envelopes))

	limit := d.fanOut
	if len(envelopes) < limit {
		limit = len(envelopes)
	}
	if limit == 0 {
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, env := range envelopes {
		g.Go(func() error {
			outcomes[i] = d.processRecord(ctx, env)
			return nil
		})
	}
	// Workers never return errors; outcomes carry all failure state.
	_ = g.Wait()

	for _, outcome := range outcomes {
		d.metrics.RecordOutcome(ctx, outcome.Status)
		d.logOutcome(ctx, outcome)
	}

	return outcomes
}

// processRecord runs one envelope through classify → resolve → send. Every
// failure, panics included, is converted to an outcome for this record only.
func (d *Dispatcher) processRecord(ctx context.Context, env Envelope) (outcome Outcome) {
	start := time.Now()
	defer func() {
		if rvr := recover(); rvr != nil {
			outcome = outcomeForError(env.MessageID, types.NewAppError(
				types.ErrCodeInternalUnexpected,
				fmt.Sprintf("panic while processing record: %v", rvr),
				nil,
			))
		}
		d.metrics.RecordLatency(ctx, time.Since(start))
	}()

	d.logger.InfoContext(ctx, "processing record", "message_id", env.MessageID)

	msg, err := mail.Classify([]byte(env.Payload))
	if err != nil {
		return outcomeForError(env.MessageID, err)
	}

	resolved, err := d.resolver.Resolve(ctx, msg)
	if err != nil {
		return outcomeForError(env.MessageID, err)
	}

	deliveryID, err := d.sender.Send(ctx, resolved)
	if err != nil {
		return outcomeForError(env.MessageID, err)
	}

	return Outcome{
		MessageID:  env.MessageID,
		Status:     OutcomeSent,
		DeliveryID: deliveryID,
	}
}

// logOutcome emits one structured log line per record.
func (d *Dispatcher) logOutcome(ctx context.Context, outcome Outcome) {
	switch outcome.Status {
	case OutcomeSent:
		d.logger.InfoContext(ctx, "email sent",
			"message_id", outcome.MessageID,
			"delivery_id", outcome.DeliveryID,
		)
	case OutcomeSkipped:
		d.logger.InfoContext(ctx, "record skipped",
			"message_id", outcome.MessageID,
			"reason", outcome.Reason,
		)
	default:
		d.logger.ErrorContext(ctx, "record failed",
			"message_id", outcome.MessageID,
			"reason", outcome.Reason,
			"error", outcome.Err,
		)
	}
}
