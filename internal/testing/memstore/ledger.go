package memstore

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

// EntryStore implements ledger.EntryStore and ledger.EntryLister.
type EntryStore struct {
	s *Store
}

func (es *EntryStore) GetByReference(ctx context.Context, accountID, ref string) (*ledger.Entry, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	for _, e := range es.s.entries[accountID] {
		if e.Reference == ref {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func (es *EntryStore) GetTail(ctx context.Context, accountID string) (*ledger.Entry, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	chain := es.s.entries[accountID]
	if len(chain) == 0 {
		return nil, nil
	}
	c := *chain[len(chain)-1]
	return &c, nil
}

func (es *EntryStore) GetBySeq(ctx context.Context, accountID string, seq int64) (*ledger.Entry, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	for _, e := range es.s.entries[accountID] {
		if e.WalletSeq == seq {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func (es *EntryStore) Insert(ctx context.Context, entry *ledger.Entry) error {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	if err := es.s.FailInsertEntries; err != nil {
		es.s.FailInsertEntries = nil
		return err
	}

	for _, e := range es.s.entries[entry.AccountID] {
		if e.Reference == entry.Reference || e.WalletSeq == entry.WalletSeq {
			return relationaldb.NewConstraintError("insert_entry",
				"duplicate ledger entry", relationaldb.ErrUniqueViolation)
		}
	}

	c := *entry
	es.s.entries[entry.AccountID] = append(es.s.entries[entry.AccountID], &c)
	sort.Slice(es.s.entries[entry.AccountID], func(i, j int) bool {
		return es.s.entries[entry.AccountID][i].WalletSeq < es.s.entries[entry.AccountID][j].WalletSeq
	})
	return nil
}

func (es *EntryStore) ListRange(ctx context.Context, accountID string, fromSeq, toSeq int64) ([]*ledger.Entry, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	var out []*ledger.Entry
	for _, e := range es.s.entries[accountID] {
		if e.WalletSeq < fromSeq {
			continue
		}
		if toSeq > 0 && e.WalletSeq > toSeq {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (es *EntryStore) List(ctx context.Context, f ledger.ListFilter) ([]*ledger.Entry, int64, error) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	var matches []*ledger.Entry
	for accountID, chain := range es.s.entries {
		if f.AccountID != "" && f.AccountID != accountID {
			continue
		}
		for _, e := range chain {
			if f.Reference != "" && e.Reference != f.Reference {
				continue
			}
			if f.OrderID != "" && e.OrderID != f.OrderID {
				continue
			}
			if f.EntryType != "" && string(e.EntryType) != f.EntryType {
				continue
			}
			if f.FromDate != nil && e.CreatedAt.Before(*f.FromDate) {
				continue
			}
			if f.ToDate != nil && e.CreatedAt.After(*f.ToDate) {
				continue
			}
			c := *e
			matches = append(matches, &c)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := int64(len(matches))
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(matches) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

// Tamper overwrites a stored entry in place, bypassing the append-only rule.
// Chain verification tests use it to simulate storage-level corruption.
func (es *EntryStore) Tamper(accountID string, seq int64, mutate func(e *ledger.Entry)) {
	es.s.mu.Lock()
	defer es.s.mu.Unlock()

	for _, e := range es.s.entries[accountID] {
		if e.WalletSeq == seq {
			mutate(e)
			return
		}
	}
}

// BalanceStore implements ledger.BalanceStore.
type BalanceStore struct {
	s *Store
}

func (bs *BalanceStore) Get(ctx context.Context, accountID string) (*ledger.Balance, error) {
	bs.s.mu.Lock()
	defer bs.s.mu.Unlock()

	b, ok := bs.s.balances[accountID]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (bs *BalanceStore) Create(ctx context.Context, balance *ledger.Balance) error {
	bs.s.mu.Lock()
	defer bs.s.mu.Unlock()

	if _, ok := bs.s.balances[balance.AccountID]; ok {
		return relationaldb.NewConstraintError("create_balance",
			"balance row exists", relationaldb.ErrUniqueViolation)
	}
	c := *balance
	bs.s.balances[balance.AccountID] = &c
	return nil
}

func (bs *BalanceStore) Update(ctx context.Context, accountID string, balance decimal.Decimal, lastEntrySeq int64) error {
	bs.s.mu.Lock()
	defer bs.s.mu.Unlock()

	b, ok := bs.s.balances[accountID]
	if !ok {
		return relationaldb.NewDataError("update_balance", "no balance row for "+accountID, nil)
	}
	b.Balance = balance
	b.LastEntrySeq = lastEntrySeq
	return nil
}
