package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sokopay/ledgerd/internal/audit"
	"github.com/sokopay/ledgerd/internal/core/ledger"
)

// GenesisMarketingReference is the reference of the marketing wallet's
// opening credit.
const GenesisMarketingReference = "GENESIS_MARKETING_WALLET"

// genesisMarketingAmount is the opening marketing subsidy pool.
var genesisMarketingAmount = decimal.RequireFromString("1000000.0000")

// SeedGenesis installs the genesis accounts: the MARKETING_WALLET opening
// credit through the normal append path (walletSeq=1, no previous hash) and
// zero-balance rows for PLATFORM_ESCROW and LEGACY_MIGRATION_WALLET.
// Idempotent: the append path dedupes on reference and existing balance rows
// are left alone.
func (o *Orchestrator) SeedGenesis(ctx context.Context) error {
	var seeded bool

	err := o.store.WithinSettlementTx(ctx, func(ctx context.Context, tx TxContext) error {
		existing, err := tx.Entries().GetByReference(ctx, ledger.AccountMarketingWallet, GenesisMarketingReference)
		if err != nil {
			return err
		}
		seeded = existing == nil

		if _, err := o.engine.Append(ctx, tx.Entries(), tx.Balances(), ledger.AppendInput{
			Reference:   GenesisMarketingReference,
			AccountID:   ledger.AccountMarketingWallet,
			EntryType:   ledger.EntryTypeCredit,
			Amount:      genesisMarketingAmount,
			Description: "Genesis funding of the marketing subsidy pool",
		}); err != nil {
			return err
		}

		for _, accountID := range []string{ledger.AccountPlatformEscrow, ledger.AccountLegacyMigration} {
			balance, err := tx.Balances().Get(ctx, accountID)
			if err != nil {
				return err
			}
			if balance != nil {
				continue
			}
			if err := tx.Balances().Create(ctx, &ledger.Balance{
				AccountID:     accountID,
				Balance:       decimal.Zero,
				Currency:      ledger.DefaultCurrency,
				LastEntrySeq:  0,
				LastUpdatedAt: time.Now().UTC(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if seeded {
		o.audit.Record(ctx, audit.Event{
			Action:  audit.ActionGenesisSeeded,
			Actor:   Actor,
			Outcome: audit.OutcomeSuccess,
			Details: map[string]any{
				"marketingFunding": genesisMarketingAmount.StringFixed(4),
			},
		})
		o.log.Info().Msg("genesis accounts seeded")
	} else {
		o.log.Info().Msg("genesis accounts already present, nothing to do")
	}

	return nil
}
