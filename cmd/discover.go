package cmd

import (
	"github.com/spf13/cobra"

	"labbot/internal/config"
	"labbot/pkg/smart"
)

func newDiscoverCmd() *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the OAuth endpoints advertised by a FHIR server",
		Long: `Fetch {base-url}/metadata and print the authorize and token endpoints
from its SMART oauth-uris extension.

The base URL defaults to the configured environment's base-url.

Examples:
  labbot discover
  labbot discover --base-url https://sandbox-api.va.gov/services/fhir/v0/r4 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var s config.Settings
			if err := config.ParseEnv(&s); err != nil {
				return err
			}

			target := baseURL
			if target == "" {
				source, err := config.NewSource(configFile)
				if err != nil {
					return err
				}
				if target, err = source.RequireField(config.FieldBaseURL); err != nil {
					return err
				}
			}

			client := smart.NewClient(smart.WithHTTPClient(s.HTTPClient()))

			var endpoints smart.Endpoints
			err := withSpinner(cmd.ErrOrStderr(), "Discovering endpoints...", func() error {
				var discoverErr error
				endpoints, discoverErr = client.DiscoverEndpoints(cmd.Context(), target)
				return discoverErr
			})
			if err != nil {
				return err
			}

			formatter, err := newFormatter(cmd, false)
			if err != nil {
				return err
			}
			return formatter.FormatEndpoints(target, endpoints)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "FHIR base URL (defaults to the configured base-url)")
	return cmd
}
