package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sokopay/ledgerd/internal/core/errs"
)

// ProviderFlutterwave is the provider key for Flutterwave webhooks.
const ProviderFlutterwave = "flutterwave"

// FlutterwaveVerifier checks the shared-secret hash Flutterwave sends in the
// verif-hash (or x-flw-signature) header.
type FlutterwaveVerifier struct {
	secret string
	// stubAccept skips verification entirely. Development only; must never
	// be enabled in production.
	stubAccept bool
}

// NewFlutterwaveVerifier creates a verifier for the configured secret.
func NewFlutterwaveVerifier(secret string, stubAccept bool) *FlutterwaveVerifier {
	return &FlutterwaveVerifier{secret: secret, stubAccept: stubAccept}
}

func (v *FlutterwaveVerifier) Verify(rawBody []byte, headers map[string]string) error {
	if v.stubAccept {
		return nil
	}
	if v.secret == "" {
		return errs.New(CodeSignatureInvalid, "no flutterwave secret configured")
	}

	signature := headerValue(headers, "verif-hash")
	if signature == "" {
		signature = headerValue(headers, "x-flw-signature")
	}
	if signature == "" {
		return errs.New(CodeSignatureInvalid, "missing signature header")
	}

	if subtle.ConstantTimeCompare([]byte(signature), []byte(v.secret)) != 1 {
		return errs.New(CodeSignatureInvalid, "signature mismatch")
	}
	return nil
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// flutterwavePayload is the subset of the Flutterwave webhook body the
// pipeline reads.
type flutterwavePayload struct {
	ID    json.Number `json:"id"`
	Event string      `json:"event"`
	TxRef string      `json:"txRef"`
	Data  struct {
		ID        json.Number `json:"id"`
		TxRef     string      `json:"tx_ref"`
		Reference string      `json:"reference"`
		Status    string      `json:"status"`
	} `json:"data"`
}

// parseFlutterwave extracts the provider event id and the optional payment
// reference from a Flutterwave payload. hasEventID is false when the
// provider omitted the id and the caller must fall back to a synthetic one.
func parseFlutterwave(rawBody []byte) (eventID, ref string, hasEventID bool) {
	var p flutterwavePayload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return "", "", false
	}

	switch {
	case p.ID.String() != "":
		eventID = fmt.Sprintf("flw_%s", p.ID.String())
		hasEventID = true
	case p.Data.ID.String() != "":
		eventID = fmt.Sprintf("flw_%s", p.Data.ID.String())
		hasEventID = true
	}

	ref = p.Data.TxRef
	if ref == "" {
		ref = p.TxRef
	}
	if ref == "" {
		ref = p.Data.Reference
	}
	return eventID, ref, hasEventID
}
