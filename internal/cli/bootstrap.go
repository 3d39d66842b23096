package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/sokopay/ledgerd/internal/audit"
	"github.com/sokopay/ledgerd/internal/config"
	"github.com/sokopay/ledgerd/internal/core/intent"
	"github.com/sokopay/ledgerd/internal/core/ledger"
	"github.com/sokopay/ledgerd/internal/core/settlement"
	"github.com/sokopay/ledgerd/internal/core/webhook"
	"github.com/sokopay/ledgerd/internal/storage/relationaldb/postgres"
)

// app bundles the configured components a command runs against.
type app struct {
	cfg *config.Config
	log zerolog.Logger
	db  *postgres.Database

	engine       *ledger.Engine
	intents      *intent.Service
	orchestrator *settlement.Orchestrator
	pipeline     *webhook.Pipeline

	entries  *postgres.EntryRepository
	balances *postgres.BalanceRepository
}

// newApp loads configuration, opens storage and constructs the core services.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := postgres.NewDatabase(cfg.RelationalConfig())
	if err != nil {
		return nil, err
	}
	if err := db.Open(ctx); err != nil {
		return nil, err
	}
	log.Info().Str("database", cfg.RelationalConfig().String()).Msg("storage opened")

	engine := ledger.NewEngine(log)
	recorder := audit.NewLogRecorder(log)

	intents := intent.NewService(
		postgres.NewIntentRepository(db),
		postgres.NewRefundRepository(db),
		log,
	)

	orchestrator := settlement.NewOrchestrator(
		postgres.NewSettlementStore(db),
		engine,
		recorder,
		log,
	)

	verifier := webhook.NewFlutterwaveVerifier(
		cfg.Providers.FlutterwaveSecretHash,
		cfg.IsDevelopment(),
	)
	pipeline := webhook.NewPipeline(
		postgres.NewWebhookRepository(db),
		map[string]webhook.Verifier{webhook.ProviderFlutterwave: verifier},
		orchestrator,
		recorder,
		log,
	)

	return &app{
		cfg:          cfg,
		log:          log,
		db:           db,
		engine:       engine,
		intents:      intents,
		orchestrator: orchestrator,
		pipeline:     pipeline,
		entries:      postgres.NewEntryRepository(db),
		balances:     postgres.NewBalanceRepository(db),
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.db.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("failed to close storage")
	}
}

// newLogger builds the process logger: level from config (--debug wins),
// console writer in development, JSON elsewhere.
func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Nop(), err
	}
	if debug {
		level = zerolog.DebugLevel
	}

	var log zerolog.Logger
	if cfg.IsDevelopment() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger(), nil
}
