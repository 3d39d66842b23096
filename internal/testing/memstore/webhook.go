package memstore

import (
	"context"
	"time"

	"github.com/sokopay/ledgerd/internal/core/webhook"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

// InboxStore implements webhook.InboxStore.
type InboxStore struct {
	s *Store
}

func (is *InboxStore) Insert(ctx context.Context, entry *webhook.InboxEntry) error {
	is.s.mu.Lock()
	defer is.s.mu.Unlock()

	for _, existing := range is.s.inbox {
		if existing.Provider == entry.Provider && existing.ProviderEventID == entry.ProviderEventID {
			return relationaldb.NewConstraintError("insert_webhook",
				"duplicate provider event", relationaldb.ErrUniqueViolation)
		}
	}
	c := *entry
	is.s.inbox[entry.ID] = &c
	return nil
}

func (is *InboxStore) GetByID(ctx context.Context, id string) (*webhook.InboxEntry, error) {
	is.s.mu.Lock()
	defer is.s.mu.Unlock()

	entry, ok := is.s.inbox[id]
	if !ok {
		return nil, nil
	}
	c := *entry
	return &c, nil
}

func (is *InboxStore) GetByProviderEvent(ctx context.Context, provider, providerEventID string) (*webhook.InboxEntry, error) {
	is.s.mu.Lock()
	defer is.s.mu.Unlock()

	for _, entry := range is.s.inbox {
		if entry.Provider == provider && entry.ProviderEventID == providerEventID {
			c := *entry
			return &c, nil
		}
	}
	return nil, nil
}

func (is *InboxStore) UpdateStatus(ctx context.Context, id string, status webhook.Status, errorMessage string, processedAt *time.Time) error {
	is.s.mu.Lock()
	defer is.s.mu.Unlock()

	entry, ok := is.s.inbox[id]
	if !ok {
		return relationaldb.NewDataError("update_webhook_status", "no webhook "+id, nil)
	}
	entry.Status = status
	entry.ErrorMessage = errorMessage
	entry.ProcessedAt = processedAt
	return nil
}
