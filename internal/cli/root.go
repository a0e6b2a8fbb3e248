// Package cli implements the cadence command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ewilliams-labs/cadence/internal/config"
)

type rootOptions struct {
	configFile string
	envFile    string

	v   *viper.Viper
	cfg *config.Config
}

// NewRootCommand builds the command tree. Flags, CADENCE_* variables, the
// .env file and the optional config file all land in one viper instance.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:   "cadence",
		Short: "Classify music tracks from catalog features and preview audio",
		Long: `cadence predicts a class label for a catalog track. It combines the
track's editorial audio features with a mel spectrogram of the first five
seconds of its preview clip, and falls back to a features-only model when no
usable preview exists.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, console)")
	flags.String("inference-mode", "eval", "model evaluation mode (eval, train)")
	flags.String("storage", "cadence.db", "sqlite database path; empty disables cache and feature log")

	bind(opts.v, flags, map[string]string{
		"log.level":      "log-level",
		"log.format":     "log-format",
		"inference.mode": "inference-mode",
		"storage.path":   "storage",
	})

	cmd.AddCommand(
		newServeCommand(opts),
		newPredictCommand(opts),
		newReconstructCommand(opts),
		newBatchCommand(opts),
		newSearchCommand(opts),
		newConfigCommand(opts),
	)
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// bind maps config keys to flag names.
func bind(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		f := flags.Lookup(name)
		if f == nil {
			panic(fmt.Sprintf("cli: no flag %q for key %q", name, key))
		}
		if err := v.BindPFlag(key, f); err != nil {
			panic(fmt.Sprintf("cli: bind %q: %v", name, err))
		}
	}
}
