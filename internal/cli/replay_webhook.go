package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var replayReason string

var replayWebhookCmd = &cobra.Command{
	Use:   "replay-webhook <webhook-id>",
	Short: "Re-run settlement for a stored webhook",
	Long: `Re-trigger settlement for a webhook that verified but failed to
settle. Already processed webhooks are a no-op. The replay is recorded as an
audit event with the given reason.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		result, err := a.pipeline.Replay(ctx, args[0], replayReason)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(replayWebhookCmd)

	replayWebhookCmd.Flags().StringVar(&replayReason, "reason", "manual replay", "reason recorded on the audit event")
}
