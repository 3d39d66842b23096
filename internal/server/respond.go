package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sokopay/ledgerd/internal/core/errs"
	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/core/settlement"
	"github.com/sokopay/ledgerd/internal/core/webhook"
)

// errorEnvelope is the uniform error body of the v1 API.
type errorEnvelope struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a core error code onto an HTTP status and renders the
// envelope. Unknown errors become opaque 500s.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var core *errs.Error
	if !errors.As(err, &core) {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{
			Code:    "INTERNAL",
			Message: "internal error",
		})
		return
	}

	status := statusFor(core.Code)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorEnvelope{
		Code:    core.Code,
		Message: core.Message,
		Details: core.Details,
	})
}

func statusFor(code string) int {
	switch code {
	case intent.CodeInvalidAmount, intent.CodeInvalidAmounts, intent.CodeInvalidDiscount,
		intent.CodeDiscountCodeRequired, ledger.CodeInvalidEntryInput,
		webhook.CodeUnknownProvider, codeBadRequest:
		return http.StatusBadRequest
	case intent.CodeIntentNotFound, webhook.CodeWebhookNotFound, codeNotFound:
		return http.StatusNotFound
	case intent.CodeInvalidTransition, intent.CodePaymentNotSettled,
		intent.CodeRefundExceedsRemaining, settlement.CodeInvalidStatusForSettlement,
		ledger.CodeInsufficientBalance, ledger.CodeDebitOnNonExistentWallet:
		return http.StatusConflict
	case ledger.CodeSerializationFailure:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Codes minted by the HTTP layer itself.
const (
	codeBadRequest = "BAD_REQUEST"
	codeNotFound   = "NOT_FOUND"
)

// decodeJSON parses the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(codeBadRequest, "invalid request body", err)
	}
	return nil
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		var evt *zerolog.Event
		if rec.status >= http.StatusInternalServerError {
			evt = s.log.Error()
		} else {
			evt = s.log.Info()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
