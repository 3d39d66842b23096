package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sokopay/ledgerd/internal/server"
)

// serverCmd represents the server command (default action)
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the settlement core API server",
	Long: `Start the ledgerd HTTP server exposing the v1 API: payment and
refund intents, provider webhooks, ledger queries, chain verification,
wallet balances and the ops replay endpoint.

This is the default command when no subcommand is specified.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Running without a subcommand starts the server.
	rootCmd.RunE = runServer
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	srv := server.New(a.cfg.Server, server.Deps{
		Intents:  a.intents,
		Webhooks: a.pipeline,
		Engine:   a.engine,
		Entries:  a.entries,
		Balances: a.balances,
		Ping:     a.db.Ping,
	}, a.log)

	return srv.Run(ctx)
}
