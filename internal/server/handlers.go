package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/core/errs"
	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/core/ledger"
)

// maxWebhookBody bounds provider payload reads.
const maxWebhookBody = 1 << 20

type createPaymentRequest struct {
	OrderID        string          `json:"orderId"`
	Amount         decimal.Decimal `json:"amount"`
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	DiscountCode   string          `json:"discountCode"`
	Provider       string          `json:"provider"`
	Currency       string          `json:"currency"`
	Metadata       map[string]any  `json:"metadata"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	// An absent original amount means no discount was applied.
	if req.OriginalAmount.IsZero() {
		req.OriginalAmount = req.Amount
	}

	pi, created, err := s.deps.Intents.CreatePayment(r.Context(), intent.CreatePaymentInput{
		OrderID:        req.OrderID,
		Amount:         req.Amount,
		OriginalAmount: req.OriginalAmount,
		DiscountCode:   req.DiscountCode,
		Provider:       req.Provider,
		Currency:       req.Currency,
		Metadata:       req.Metadata,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, pi)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	pi, err := s.deps.Intents.GetPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pi)
}

type transitionRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleTransitionPayment(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	pi, err := s.deps.Intents.Transition(r.Context(), r.PathValue("id"), intent.Status(req.Status))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pi)
}

type createRefundRequest struct {
	PaymentIntentID string          `json:"paymentIntentId"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	Description     string          `json:"description"`
}

func (s *Server) handleCreateRefund(w http.ResponseWriter, r *http.Request) {
	var req createRefundRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ri, err := s.deps.Intents.CreateRefund(r.Context(), intent.CreateRefundInput{
		PaymentIntentID: req.PaymentIntentID,
		Amount:          req.Amount,
		Reason:          req.Reason,
		Description:     req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ri)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, r, errs.Wrap(codeBadRequest, "failed to read webhook body", err))
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	result, err := s.deps.Webhooks.Process(r.Context(), r.PathValue("provider"), body, headers)
	if err != nil {
		// Settlement failures must produce a non-2xx so the provider
		// redelivers; the inbox entry stays VERIFIED for replay.
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type entriesResponse struct {
	Entries []*ledger.Entry `json:"entries"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
	Total   int64           `json:"total"`
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := ledger.ListFilter{
		AccountID: q.Get("accountId"),
		Reference: q.Get("reference"),
		OrderID:   q.Get("orderId"),
		EntryType: q.Get("entryType"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	for param, dst := range map[string]**time.Time{"fromDate": &f.FromDate, "toDate": &f.ToDate} {
		if raw := q.Get(param); raw != "" {
			ts, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				s.writeError(w, r, errs.Newf(codeBadRequest, "invalid %s: %s", param, raw))
				return
			}
			*dst = &ts
		}
	}

	entries, total, err := s.deps.Entries.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	writeJSON(w, http.StatusOK, entriesResponse{Entries: entries, Page: f.Page, Limit: f.Limit, Total: total})
}

type verifyChainRequest struct {
	AccountID string `json:"accountId"`
	FromSeq   int64  `json:"fromSeq"`
	ToSeq     int64  `json:"toSeq"`
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	var req verifyChainRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.AccountID == "" {
		s.writeError(w, r, errs.New(codeBadRequest, "accountId is required"))
		return
	}

	result, err := s.deps.Engine.VerifyChain(r.Context(), s.deps.Entries, req.AccountID, req.FromSeq, req.ToSeq)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("accountId")

	balance, err := s.deps.Balances.Get(r.Context(), accountID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if balance == nil {
		s.writeError(w, r, errs.Newf(codeNotFound, "no wallet exists for account %s", accountID))
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

type replayWebhookRequest struct {
	WebhookID string `json:"webhookId"`
	Reason    string `json:"reason"`
}

func (s *Server) handleReplayWebhook(w http.ResponseWriter, r *http.Request) {
	var req replayWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.WebhookID == "" {
		s.writeError(w, r, errs.New(codeBadRequest, "webhookId is required"))
		return
	}

	result, err := s.deps.Webhooks.Replay(r.Context(), req.WebhookID, req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.deps.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
