package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokopay/ledgerd/internal/core/errs"
)

func TestFlutterwaveVerify(t *testing.T) {
	v := NewFlutterwaveVerifier("whsec_live", false)

	t.Run("verif-hash header", func(t *testing.T) {
		assert.NoError(t, v.Verify(nil, map[string]string{"verif-hash": "whsec_live"}))
	})

	t.Run("header lookup is case-insensitive", func(t *testing.T) {
		assert.NoError(t, v.Verify(nil, map[string]string{"Verif-Hash": "whsec_live"}))
	})

	t.Run("x-flw-signature fallback", func(t *testing.T) {
		assert.NoError(t, v.Verify(nil, map[string]string{"X-Flw-Signature": "whsec_live"}))
	})

	t.Run("mismatch", func(t *testing.T) {
		err := v.Verify(nil, map[string]string{"verif-hash": "whsec_other"})
		require.Error(t, err)
		assert.Equal(t, CodeSignatureInvalid, errs.CodeOf(err))
	})

	t.Run("missing header", func(t *testing.T) {
		err := v.Verify(nil, map[string]string{})
		assert.Equal(t, CodeSignatureInvalid, errs.CodeOf(err))
	})

	t.Run("no secret configured", func(t *testing.T) {
		bare := NewFlutterwaveVerifier("", false)
		err := bare.Verify(nil, map[string]string{"verif-hash": ""})
		assert.Equal(t, CodeSignatureInvalid, errs.CodeOf(err))
	})

	t.Run("stub accept skips verification", func(t *testing.T) {
		stub := NewFlutterwaveVerifier("", true)
		assert.NoError(t, stub.Verify(nil, nil))
	})
}

func TestParseFlutterwave(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantEventID string
		wantRef     string
		wantHasID   bool
	}{
		{
			name:        "top-level id and nested tx_ref",
			body:        `{"id": 4310201, "data": {"tx_ref": "PAYMENT_ORD-1"}}`,
			wantEventID: "flw_4310201",
			wantRef:     "PAYMENT_ORD-1",
			wantHasID:   true,
		},
		{
			name:        "nested id only",
			body:        `{"data": {"id": 777, "reference": "PAYMENT_ORD-2"}}`,
			wantEventID: "flw_777",
			wantRef:     "PAYMENT_ORD-2",
			wantHasID:   true,
		},
		{
			name:      "legacy txRef at top level",
			body:      `{"id": 1, "txRef": "PAYMENT_ORD-3"}`,
			wantRef:   "PAYMENT_ORD-3",
			wantHasID: true,
		},
		{
			name:      "no id at all",
			body:      `{"event": "charge.completed", "data": {"tx_ref": "PAYMENT_ORD-4"}}`,
			wantRef:   "PAYMENT_ORD-4",
			wantHasID: false,
		},
		{
			name:      "garbage body",
			body:      `not json`,
			wantHasID: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eventID, ref, hasID := parseFlutterwave([]byte(tt.body))
			assert.Equal(t, tt.wantHasID, hasID)
			assert.Equal(t, tt.wantRef, ref)
			if tt.wantEventID != "" {
				assert.Equal(t, tt.wantEventID, eventID)
			}
		})
	}
}
