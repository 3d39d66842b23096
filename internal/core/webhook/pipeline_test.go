package webhook_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokopay/ledgerd/internal/audit"
	"github.com/sokopay/ledgerd/internal/core/errs"
	"github.com/sokopay/ledgerd/internal/core/webhook"
	"github.com/sokopay/ledgerd/internal/testing/memstore"
)

// fakeSettler records settlement triggers and can be told to fail.
type fakeSettler struct {
	refs []string
	err  error
}

func (s *fakeSettler) SettleByReference(ctx context.Context, ref string) error {
	if s.err != nil {
		return s.err
	}
	s.refs = append(s.refs, ref)
	return nil
}

type nopRecorder struct{}

func (nopRecorder) Record(ctx context.Context, e audit.Event) {}

func newTestPipeline(secret string) (*webhook.Pipeline, *memstore.Store, *fakeSettler) {
	store := memstore.New()
	settler := &fakeSettler{}
	verifier := webhook.NewFlutterwaveVerifier(secret, false)
	p := webhook.NewPipeline(
		store.Inbox(),
		map[string]webhook.Verifier{webhook.ProviderFlutterwave: verifier},
		settler,
		nopRecorder{},
		zerolog.Nop(),
	)
	return p, store, settler
}

const signedHeader = "whsec_test"

func signed() map[string]string {
	return map[string]string{"verif-hash": signedHeader}
}

const paymentBody = `{"id": 4310201, "event": "charge.completed",
	"data": {"id": 4310201, "tx_ref": "PAYMENT_ORD-1", "status": "successful"}}`

func TestProcessSettlesPayment(t *testing.T) {
	p, store, settler := newTestPipeline(signedHeader)

	result, err := p.Process(context.Background(), webhook.ProviderFlutterwave,
		[]byte(paymentBody), signed())
	require.NoError(t, err)

	assert.Equal(t, webhook.StatusProcessed, result.Status)
	assert.True(t, result.Processed)
	assert.Equal(t, []string{"PAYMENT_ORD-1"}, settler.refs)

	entry, err := store.Inbox().GetByID(context.Background(), result.WebhookID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "flw_4310201", entry.ProviderEventID)
	assert.Equal(t, webhook.StatusProcessed, entry.Status)
	assert.NotNil(t, entry.ProcessedAt)
}

func TestProcessDuplicate(t *testing.T) {
	p, store, settler := newTestPipeline(signedHeader)

	first, err := p.Process(context.Background(), webhook.ProviderFlutterwave,
		[]byte(paymentBody), signed())
	require.NoError(t, err)

	second, err := p.Process(context.Background(), webhook.ProviderFlutterwave,
		[]byte(paymentBody), signed())
	require.NoError(t, err)

	assert.True(t, second.IsDuplicate)
	assert.Equal(t, webhook.StatusDuplicate, second.Status)
	assert.Equal(t, first.WebhookID, second.WebhookID)

	// Settlement ran exactly once.
	assert.Len(t, settler.refs, 1)

	entry, err := store.Inbox().GetByID(context.Background(), first.WebhookID)
	require.NoError(t, err)
	assert.Equal(t, webhook.StatusDuplicate, entry.Status)
}

func TestProcessRejectsUnknownProvider(t *testing.T) {
	p, _, _ := newTestPipeline(signedHeader)

	_, err := p.Process(context.Background(), "paystack", []byte(`{}`), nil)
	require.Error(t, err)
	assert.Equal(t, webhook.CodeUnknownProvider, errs.CodeOf(err))
}

func TestProcessBadSignaturePersistsFailed(t *testing.T) {
	p, store, settler := newTestPipeline(signedHeader)

	result, err := p.Process(context.Background(), webhook.ProviderFlutterwave,
		[]byte(paymentBody), map[string]string{"verif-hash": "wrong"})
	require.NoError(t, err)

	assert.Equal(t, webhook.StatusFailed, result.Status)
	assert.False(t, result.Processed)
	assert.Empty(t, settler.refs)

	// The entry is preserved for audit with the failure reason.
	entry, err := store.Inbox().GetByID(context.Background(), result.WebhookID)
	require.NoError(t, err)
	assert.Equal(t, webhook.StatusFailed, entry.Status)
	assert.NotEmpty(t, entry.ErrorMessage)
	assert.NotNil(t, entry.ProcessedAt)
}

func TestProcessMissingEventIDFallsBack(t *testing.T) {
	p, store, _ := newTestPipeline(signedHeader)

	body := `{"event": "charge.completed", "data": {"tx_ref": "PAYMENT_ORD-9"}}`
	result, err := p.Process(context.Background(), webhook.ProviderFlutterwave,
		[]byte(body), signed())
	require.NoError(t, err)
	assert.Equal(t, webhook.StatusProcessed, result.Status)

	entry, err := store.Inbox().GetByID(context.Background(), result.WebhookID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(entry.ProviderEventID, "flw_"))
}

func TestProcessStopsWithoutReference(t *testing.T) {
	p, store, settler := newTestPipeline(signedHeader)

	body := `{"id": 99, "event": "transfer.completed", "data": {"id": 99}}`
	result, err := p.Process(context.Background(), webhook.ProviderFlutterwave,
		[]byte(body), signed())
	require.NoError(t, err)

	assert.Equal(t, webhook.StatusVerified, result.Status)
	assert.False(t, result.Processed)
	assert.Empty(t, settler.refs)

	entry, err := store.Inbox().GetByID(context.Background(), result.WebhookID)
	require.NoError(t, err)
	assert.Equal(t, webhook.StatusVerified, entry.Status)
}

func TestProcessSettlementFailureLeavesVerified(t *testing.T) {
	p, store, settler := newTestPipeline(signedHeader)
	settler.err = errs.New("SERIALIZATION_FAILURE", "conflict")

	result, err := p.Process(context.Background(), webhook.ProviderFlutterwave,
		[]byte(paymentBody), signed())
	require.Error(t, err)
	assert.Equal(t, webhook.StatusVerified, result.Status)

	entry, err := store.Inbox().GetByID(context.Background(), result.WebhookID)
	require.NoError(t, err)
	assert.Equal(t, webhook.StatusVerified, entry.Status)

	// Once the conflict clears, replay completes the webhook.
	settler.err = nil
	replayed, err := p.Replay(context.Background(), result.WebhookID, "conflict cleared")
	require.NoError(t, err)
	assert.Equal(t, webhook.StatusProcessed, replayed.Status)
	assert.Equal(t, []string{"PAYMENT_ORD-1"}, settler.refs)
}

func TestReplayProcessedIsNoOp(t *testing.T) {
	p, _, settler := newTestPipeline(signedHeader)

	result, err := p.Process(context.Background(), webhook.ProviderFlutterwave,
		[]byte(paymentBody), signed())
	require.NoError(t, err)
	require.Len(t, settler.refs, 1)

	replayed, err := p.Replay(context.Background(), result.WebhookID, "double check")
	require.NoError(t, err)
	assert.True(t, replayed.Processed)
	assert.Len(t, settler.refs, 1)
}

func TestReplayNotFound(t *testing.T) {
	p, _, _ := newTestPipeline(signedHeader)

	_, err := p.Replay(context.Background(), "missing", "why not")
	assert.Equal(t, webhook.CodeWebhookNotFound, errs.CodeOf(err))
}
