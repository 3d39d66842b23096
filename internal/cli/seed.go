package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the genesis accounts",
	Long: `Create the well-known wallets: the MARKETING_WALLET opening credit
and zero-balance rows for PLATFORM_ESCROW and LEGACY_MIGRATION_WALLET.
Safe to run repeatedly; existing accounts are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		return a.orchestrator.SeedGenesis(ctx)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
