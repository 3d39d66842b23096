package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb"
)

// PaymentStore implements intent.Store.
type PaymentStore struct {
	s *Store
}

func (ps *PaymentStore) Insert(ctx context.Context, pi *intent.PaymentIntent) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()

	for _, existing := range ps.s.payments {
		if existing.Reference == pi.Reference {
			return relationaldb.NewConstraintError("insert_payment_intent",
				"duplicate reference", relationaldb.ErrUniqueViolation)
		}
	}
	c := *pi
	ps.s.payments[pi.ID] = &c
	return nil
}

func (ps *PaymentStore) GetByID(ctx context.Context, id string) (*intent.PaymentIntent, error) {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()

	pi, ok := ps.s.payments[id]
	if !ok {
		return nil, nil
	}
	c := *pi
	return &c, nil
}

func (ps *PaymentStore) GetByReference(ctx context.Context, ref string) (*intent.PaymentIntent, error) {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()

	for _, pi := range ps.s.payments {
		if pi.Reference == ref {
			c := *pi
			return &c, nil
		}
	}
	return nil, nil
}

func (ps *PaymentStore) UpdateStatus(ctx context.Context, id string, status intent.Status) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()

	pi, ok := ps.s.payments[id]
	if !ok {
		return relationaldb.NewDataError("update_payment_status", "no intent "+id, nil)
	}
	pi.Status = status
	pi.UpdatedAt = time.Now().UTC()
	return nil
}

// RefundStore implements intent.RefundStore.
type RefundStore struct {
	s *Store
}

func (rs *RefundStore) Insert(ctx context.Context, ri *intent.RefundIntent) error {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	for _, existing := range rs.s.refunds {
		if existing.Reference == ri.Reference {
			return relationaldb.NewConstraintError("insert_refund_intent",
				"duplicate reference", relationaldb.ErrUniqueViolation)
		}
	}
	c := *ri
	rs.s.refunds[ri.ID] = &c
	return nil
}

func (rs *RefundStore) GetByID(ctx context.Context, id string) (*intent.RefundIntent, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	ri, ok := rs.s.refunds[id]
	if !ok {
		return nil, nil
	}
	c := *ri
	return &c, nil
}

// SetStatus overwrites a refund's status directly, for tests that need a
// FAILED refund without a disbursement path.
func (rs *RefundStore) SetStatus(id string, status intent.RefundStatus) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	if ri, ok := rs.s.refunds[id]; ok {
		ri.Status = status
	}
}

func (rs *RefundStore) ListByPayment(ctx context.Context, paymentIntentID string) ([]*intent.RefundIntent, error) {
	rs.s.mu.Lock()
	defer rs.s.mu.Unlock()

	var out []*intent.RefundIntent
	for _, ri := range rs.s.refunds {
		if ri.PaymentIntentID == paymentIntentID {
			c := *ri
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
