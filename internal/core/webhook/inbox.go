// Package webhook implements the provider webhook ingress pipeline:
// deduplication by (provider, providerEventId), signature verification and
// idempotent settlement triggering.
package webhook

import (
	"context"
	"time"
)

// Status is the persisted state of an inbox entry.
type Status string

const (
	StatusReceived  Status = "RECEIVED"
	StatusVerified  Status = "VERIFIED"
	StatusProcessed Status = "PROCESSED"
	StatusFailed    Status = "FAILED"
	StatusDuplicate Status = "DUPLICATE"
)

// Error codes surfaced by the pipeline.
const (
	CodeSignatureInvalid = "SIGNATURE_INVALID"
	CodeUnknownProvider  = "UNKNOWN_PROVIDER"
	CodeWebhookNotFound  = "WEBHOOK_NOT_FOUND"
)

// InboxEntry is a persisted received webhook. Payload and headers are
// write-once; only status, error message and processedAt mutate.
type InboxEntry struct {
	ID              string            `json:"id"`
	Provider        string            `json:"provider"`
	ProviderEventID string            `json:"providerEventId"`
	Reference       string            `json:"reference,omitempty"`
	Payload         []byte            `json:"payload"`
	Headers         map[string]string `json:"headers"`
	Status          Status            `json:"status"`
	ErrorMessage    string            `json:"errorMessage,omitempty"`
	ReceivedAt      time.Time         `json:"receivedAt"`
	ProcessedAt     *time.Time        `json:"processedAt,omitempty"`
}

// InboxStore is the inbox persistence. (provider, providerEventId) is a
// unique index in storage, not just an application check.
type InboxStore interface {
	// Insert persists a new entry; returns a unique-violation error when the
	// (provider, providerEventId) pair exists.
	Insert(ctx context.Context, entry *InboxEntry) error
	// GetByID returns the entry, or nil if absent.
	GetByID(ctx context.Context, id string) (*InboxEntry, error)
	// GetByProviderEvent returns the entry for the pair, or nil.
	GetByProviderEvent(ctx context.Context, provider, providerEventID string) (*InboxEntry, error)
	// UpdateStatus sets status, error message and processedAt.
	UpdateStatus(ctx context.Context, id string, status Status, errorMessage string, processedAt *time.Time) error
}

// Verifier checks the provider signature over the raw body.
type Verifier interface {
	// Verify returns a SIGNATURE_INVALID error when the signature does not
	// check out.
	Verify(rawBody []byte, headers map[string]string) error
}

// Settler triggers settlement for a payment reference. Implemented by the
// settlement orchestrator.
type Settler interface {
	SettleByReference(ctx context.Context, ref string) error
}
