package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"labbot/internal/labbot"
)

func newTokensCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Acquire an access token for each test user",
		Long: `Log each test user in through the lab identity provider and print the
resulting access token and patient.

Examples:
  labbot tokens --lab-roster
  labbot tokens -u vasdvp+IDME_01@gmail.com -u vasdvp+IDME_02@gmail.com --scope patient/Patient.read
  labbot tokens --users-file users.yaml --workers 4 -o json --show-tokens`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.runBatch(cmd, "Acquiring tokens", func(ctx context.Context, bot *labbot.Bot) ([]labbot.UserResult, error) {
				return bot.Tokens(ctx)
			})
		},
	}

	flags.register(cmd)
	return cmd
}
