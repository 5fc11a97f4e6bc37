package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"labbot/internal/labbot"
)

func newRequestCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "request <path>",
		Short: "Acquire tokens, then issue one authenticated GET per user",
		Long: `Acquire a token for each test user, then GET <path> from the configured
base URL's host with that user's token. Every {icn} in <path> is replaced
by the user's patient. Only the first line of each response is kept.

Examples:
  labbot request '/services/fhir/v0/r4/Patient/{icn}' --lab-roster
  labbot request '/services/fhir/v0/r4/Condition?patient={icn}' -u vasdvp+IDME_01@gmail.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			return flags.runBatch(cmd, "Requesting "+path, func(ctx context.Context, bot *labbot.Bot) ([]labbot.UserResult, error) {
				return bot.Request(ctx, path)
			})
		},
	}

	flags.register(cmd)
	return cmd
}
