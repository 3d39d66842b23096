// Package memstore provides in-memory store implementations for tests. All
// stores share one Store so settlement transactions see a single state, with
// snapshot-based rollback mirroring the relational transaction semantics.
package memstore

import (
	"context"
	"sync"

	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/core/settlement"
	"github.com/sokopay/ledgerd/internal/core/webhook"
)

// Store is the shared in-memory state.
type Store struct {
	mu sync.Mutex

	entries  map[string][]*ledger.Entry // account id -> ascending wallet seq
	balances map[string]*ledger.Balance

	payments map[string]*intent.PaymentIntent // by id
	refunds  map[string]*intent.RefundIntent  // by id

	inbox map[string]*webhook.InboxEntry // by id

	// FailInsertEntries makes the next ledger insert fail with this error,
	// for transaction rollback tests.
	FailInsertEntries error
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries:  make(map[string][]*ledger.Entry),
		balances: make(map[string]*ledger.Balance),
		payments: make(map[string]*intent.PaymentIntent),
		refunds:  make(map[string]*intent.RefundIntent),
		inbox:    make(map[string]*webhook.InboxEntry),
	}
}

// Entries returns the ledger entry store view.
func (s *Store) Entries() *EntryStore { return &EntryStore{s: s} }

// Balances returns the balance store view.
func (s *Store) Balances() *BalanceStore { return &BalanceStore{s: s} }

// Payments returns the payment intent store view.
func (s *Store) Payments() *PaymentStore { return &PaymentStore{s: s} }

// Refunds returns the refund intent store view.
func (s *Store) Refunds() *RefundStore { return &RefundStore{s: s} }

// Inbox returns the webhook inbox store view.
func (s *Store) Inbox() *InboxStore { return &InboxStore{s: s} }

// WithinSettlementTx implements settlement.Store: the callback runs against
// the shared state and any error restores the pre-transaction snapshot.
func (s *Store) WithinSettlementTx(ctx context.Context, fn func(ctx context.Context, tx settlement.TxContext) error) error {
	snap := s.snapshot()

	if err := fn(ctx, &txContext{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type txContext struct {
	s *Store
}

func (tc *txContext) Intents() intent.Store         { return tc.s.Payments() }
func (tc *txContext) Entries() ledger.EntryStore    { return tc.s.Entries() }
func (tc *txContext) Balances() ledger.BalanceStore { return tc.s.Balances() }

type stateSnapshot struct {
	entries  map[string][]*ledger.Entry
	balances map[string]*ledger.Balance
	payments map[string]*intent.PaymentIntent
	refunds  map[string]*intent.RefundIntent
	inbox    map[string]*webhook.InboxEntry
}

func (s *Store) snapshot() stateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := stateSnapshot{
		entries:  make(map[string][]*ledger.Entry, len(s.entries)),
		balances: make(map[string]*ledger.Balance, len(s.balances)),
		payments: make(map[string]*intent.PaymentIntent, len(s.payments)),
		refunds:  make(map[string]*intent.RefundIntent, len(s.refunds)),
		inbox:    make(map[string]*webhook.InboxEntry, len(s.inbox)),
	}
	for k, chain := range s.entries {
		cp := make([]*ledger.Entry, len(chain))
		for i, e := range chain {
			c := *e
			cp[i] = &c
		}
		snap.entries[k] = cp
	}
	for k, b := range s.balances {
		c := *b
		snap.balances[k] = &c
	}
	for k, p := range s.payments {
		c := *p
		snap.payments[k] = &c
	}
	for k, r := range s.refunds {
		c := *r
		snap.refunds[k] = &c
	}
	for k, e := range s.inbox {
		c := *e
		snap.inbox[k] = &c
	}
	return snap
}

func (s *Store) restore(snap stateSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = snap.entries
	s.balances = snap.balances
	s.payments = snap.payments
	s.refunds = snap.refunds
	s.inbox = snap.inbox
}
