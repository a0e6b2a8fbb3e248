package cli

import (
	"github.com/spf13/cobra"
)

const redacted = "********"

func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *opts.cfg
			if cfg.Spotify.ClientSecret != "" {
				cfg.Spotify.ClientSecret = redacted
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
}
