package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/app"
	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

func newPredictCommand(opts *rootOptions) *cobra.Command {
	var (
		trackID      string
		featuresFile string
		fromCatalog  bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify one track and print the result as JSON",
		Example: `  cadence predict --track 4uLU6hMCjMI75M1A2tKUQC --from-catalog
  cadence predict --track 4uLU6hMCjMI75M1A2tKUQC --features-file features.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if featuresFile == "" && !fromCatalog {
				return errors.New("one of --features-file or --from-catalog is required")
			}
			if featuresFile != "" && fromCatalog {
				return errors.New("--features-file and --from-catalog are mutually exclusive")
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var features domain.FeatureSet
			if fromCatalog {
				features, err = a.Orchestrator.AudioFeatures(ctx, trackID)
			} else {
				features, err = readFeaturesFile(featuresFile)
			}
			if err != nil {
				return err
			}

			result, err := a.Orchestrator.Predict(ctx, trackID, features)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&trackID, "track", "", "catalog track id")
	cmd.Flags().StringVar(&featuresFile, "features-file", "", "JSON object of audio features")
	cmd.Flags().BoolVar(&fromCatalog, "from-catalog", false, "fetch audio features from the catalog")
	_ = cmd.MarkFlagRequired("track")
	return cmd
}

// readFeaturesFile reads a JSON object of feature name to number. "-" reads
// standard input.
func readFeaturesFile(path string) (domain.FeatureSet, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read features: %w", err)
		}
		defer f.Close()
		r = f
	}
	var features domain.FeatureSet
	if err := json.NewDecoder(r).Decode(&features); err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	return features, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
