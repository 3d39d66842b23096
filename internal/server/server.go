// Package server exposes the v1 HTTP API of the settlement core.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sokopay/ledgerd/internal/config"
	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/core/webhook"
)

// EntryReader is the read surface of the ledger consumed by the API.
type EntryReader interface {
	ledger.EntryStore
	ledger.EntryLister
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Intents  *intent.Service
	Webhooks *webhook.Pipeline
	Engine   *ledger.Engine
	Entries  EntryReader
	Balances ledger.BalanceStore
	// Ping reports storage liveness for the health endpoint.
	Ping func(ctx context.Context) error
}

// Server is the HTTP front of the daemon.
type Server struct {
	cfg  config.ServerConfig
	deps Deps
	log  zerolog.Logger
	http *http.Server
}

// New creates the server with its routes registered.
func New(cfg config.ServerConfig, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("component", "http").Logger(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.logRequests(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/intents/payments", s.handleCreatePayment)
	mux.HandleFunc("GET /v1/intents/payments/{id}", s.handleGetPayment)
	mux.HandleFunc("POST /v1/intents/payments/{id}/transition", s.handleTransitionPayment)
	mux.HandleFunc("POST /v1/intents/refunds", s.handleCreateRefund)

	mux.HandleFunc("POST /v1/webhooks/{provider}", s.handleWebhook)

	mux.HandleFunc("GET /v1/ledger/entries", s.handleListEntries)
	mux.HandleFunc("POST /v1/ledger/verify-chain", s.handleVerifyChain)
	mux.HandleFunc("GET /v1/wallets/{accountId}/balance", s.handleGetBalance)

	mux.HandleFunc("POST /v1/ops/replay-webhook", s.handleReplayWebhook)

	mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the root handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is canceled, then drains within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		s.log.Info().Msg("http server shutting down")
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 15 * time.Second
}
