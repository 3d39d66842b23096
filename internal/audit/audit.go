// Package audit records operator-visible audit events for money-moving
// operations.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Well-known actions.
const (
	ActionPaymentSettled  = "PAYMENT_SETTLED"
	ActionWebhookReplayed = "WEBHOOK_REPLAYED"
	ActionGenesisSeeded   = "GENESIS_SEEDED"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is one audit record.
type Event struct {
	Action  string         `json:"action"`
	Actor   string         `json:"actor"`
	Outcome string         `json:"outcome"`
	Details map[string]any `json:"details,omitempty"`
	At      time.Time      `json:"at"`
}

// Recorder receives audit events.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// LogRecorder writes audit events to the structured log.
type LogRecorder struct {
	log zerolog.Logger
}

// NewLogRecorder creates a log-backed recorder.
func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log.With().Str("component", "audit").Logger()}
}

func (r *LogRecorder) Record(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	r.log.Info().
		Str("action", event.Action).
		Str("actor", event.Actor).
		Str("outcome", event.Outcome).
		Fields(map[string]any{"details": event.Details}).
		Time("at", event.At).
		Msg("audit event")
}
