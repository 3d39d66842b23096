package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/sokopay/ledgerd/internal/audit"
	"github.com/sokopay/ledgerd/internal/core/errs"
)

// seenCacheSize bounds the in-process dedup fast path. The unique index on
// (provider, providerEventId) stays authoritative; the cache only saves a
// round trip for hot duplicates.
const seenCacheSize = 4096

// Result is the outcome of ingesting or replaying one webhook.
type Result struct {
	WebhookID   string `json:"webhookId"`
	Status      Status `json:"status"`
	IsDuplicate bool   `json:"isDuplicate,omitempty"`
	Processed   bool   `json:"processed"`
}

// Pipeline ingests provider webhooks.
type Pipeline struct {
	inbox     InboxStore
	verifiers map[string]Verifier
	settler   Settler
	audit     audit.Recorder
	seen      *lru.Cache[string, struct{}]
	log       zerolog.Logger
	now       func() time.Time
}

// NewPipeline creates a webhook pipeline. verifiers maps provider keys to
// their signature predicates.
func NewPipeline(inbox InboxStore, verifiers map[string]Verifier, settler Settler, recorder audit.Recorder, log zerolog.Logger) *Pipeline {
	seen, _ := lru.New[string, struct{}](seenCacheSize)
	return &Pipeline{
		inbox:     inbox,
		verifiers: verifiers,
		settler:   settler,
		audit:     recorder,
		seen:      seen,
		log:       log.With().Str("component", "webhook").Logger(),
		now:       time.Now,
	}
}

// Process runs the per-webhook algorithm: parse, dedup, persist, verify,
// trigger settlement. Signature failures are persisted as FAILED and
// reported in the result, not as an error; settlement failures are returned
// so the provider redelivers.
func (p *Pipeline) Process(ctx context.Context, provider string, rawBody []byte, headers map[string]string) (*Result, error) {
	verifier, ok := p.verifiers[provider]
	if !ok {
		return nil, errs.Newf(CodeUnknownProvider, "no verifier registered for provider %q", provider)
	}

	eventID, ref, hasEventID := parseFlutterwave(rawBody)
	if !hasEventID {
		// Known correctness gap carried over from the provider contract: a
		// payload without an id gets a timestamp-derived one, which defeats
		// deduplication for such events.
		eventID = fmt.Sprintf("flw_%d", p.now().UnixMilli())
		p.log.Warn().
			Str("provider", provider).
			Str("event_id", eventID).
			Msg("webhook payload has no provider event id, using timestamp fallback")
	}

	if dup, err := p.dedup(ctx, provider, eventID); err != nil {
		return nil, err
	} else if dup != nil {
		return dup, nil
	}

	entry := &InboxEntry{
		ID:              uuid.NewString(),
		Provider:        provider,
		ProviderEventID: eventID,
		Reference:       ref,
		Payload:         rawBody,
		Headers:         headers,
		Status:          StatusReceived,
		ReceivedAt:      p.now().UTC(),
	}
	if err := p.inbox.Insert(ctx, entry); err != nil {
		return nil, err
	}
	p.seen.Add(seenKey(provider, eventID), struct{}{})

	if err := verifier.Verify(rawBody, headers); err != nil {
		processedAt := p.now().UTC()
		if uerr := p.inbox.UpdateStatus(ctx, entry.ID, StatusFailed, err.Error(), &processedAt); uerr != nil {
			return nil, uerr
		}
		p.log.Warn().
			Str("webhook_id", entry.ID).
			Str("provider", provider).
			Err(err).
			Msg("webhook signature verification failed")
		return &Result{WebhookID: entry.ID, Status: StatusFailed}, nil
	}

	processedAt := p.now().UTC()
	if err := p.inbox.UpdateStatus(ctx, entry.ID, StatusVerified, "", &processedAt); err != nil {
		return nil, err
	}

	if ref == "" {
		p.log.Info().
			Str("webhook_id", entry.ID).
			Str("provider", provider).
			Msg("webhook verified but carries no payment reference, stopping")
		return &Result{WebhookID: entry.ID, Status: StatusVerified}, nil
	}

	if err := p.settler.SettleByReference(ctx, ref); err != nil {
		// The entry stays VERIFIED so a redelivery or ops replay can retry.
		p.log.Warn().
			Str("webhook_id", entry.ID).
			Str("reference", ref).
			Err(err).
			Msg("settlement trigger failed")
		return &Result{WebhookID: entry.ID, Status: StatusVerified}, err
	}

	if err := p.inbox.UpdateStatus(ctx, entry.ID, StatusProcessed, "", &processedAt); err != nil {
		return nil, err
	}

	return &Result{WebhookID: entry.ID, Status: StatusProcessed, Processed: true}, nil
}

// dedup returns a duplicate result when the (provider, eventID) pair was
// seen before, transitioning the stored entry to DUPLICATE if needed.
func (p *Pipeline) dedup(ctx context.Context, provider, eventID string) (*Result, error) {
	key := seenKey(provider, eventID)

	existing, err := p.inbox.GetByProviderEvent(ctx, provider, eventID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		if _, hot := p.seen.Get(key); hot {
			// Cache hit without a row means the first insert is still in
			// flight; treat as duplicate without a webhook id.
			return &Result{Status: StatusDuplicate, IsDuplicate: true}, nil
		}
		return nil, nil
	}

	if existing.Status != StatusDuplicate {
		if err := p.inbox.UpdateStatus(ctx, existing.ID, StatusDuplicate, "", existing.ProcessedAt); err != nil {
			return nil, err
		}
	}

	p.log.Info().
		Str("webhook_id", existing.ID).
		Str("provider", provider).
		Str("event_id", eventID).
		Msg("duplicate webhook ignored")

	return &Result{WebhookID: existing.ID, Status: StatusDuplicate, IsDuplicate: true}, nil
}

// Replay re-runs settlement for a stored webhook. Already processed entries
// are a no-op.
func (p *Pipeline) Replay(ctx context.Context, webhookID, reason string) (*Result, error) {
	entry, err := p.inbox.GetByID(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errs.Newf(CodeWebhookNotFound, "webhook %s not found", webhookID)
	}

	if entry.Status == StatusProcessed {
		return &Result{WebhookID: entry.ID, Status: StatusProcessed, Processed: true}, nil
	}

	if entry.Reference == "" {
		return &Result{WebhookID: entry.ID, Status: entry.Status}, nil
	}

	if err := p.settler.SettleByReference(ctx, entry.Reference); err != nil {
		return nil, err
	}

	processedAt := p.now().UTC()
	if err := p.inbox.UpdateStatus(ctx, entry.ID, StatusProcessed, "", &processedAt); err != nil {
		return nil, err
	}

	p.audit.Record(ctx, audit.Event{
		Action:  audit.ActionWebhookReplayed,
		Actor:   "ops",
		Outcome: audit.OutcomeSuccess,
		Details: map[string]any{
			"webhookId": entry.ID,
			"reference": entry.Reference,
			"reason":    reason,
		},
	})

	return &Result{WebhookID: entry.ID, Status: StatusProcessed, Processed: true}, nil
}

func seenKey(provider, eventID string) string {
	return provider + "|" + eventID
}
