package cmd

import (
	"github.com/spf13/cobra"
)

func newUsersCmd() *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List the test users a batch would run against",
		Long: `Resolve --user, --users-file and --lab-roster into the deduplicated list
of test users, without logging anyone in.

Examples:
  labbot users --lab-roster
  labbot users --users-file users.txt -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := flags.userIDs()
			if err != nil {
				return err
			}

			formatter, err := newFormatter(cmd, false)
			if err != nil {
				return err
			}
			return formatter.FormatUsers(users)
		},
	}

	cmd.Flags().StringSliceVarP(&flags.users, "user", "u", nil, "Test user ID (repeatable)")
	cmd.Flags().StringVar(&flags.usersFile, "users-file", "", "File listing test user IDs (YAML list or one per line)")
	cmd.Flags().BoolVar(&flags.labRoster, "lab-roster", false, "Use every user of the lab roster")
	return cmd
}
