package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/adapters/wav"
	"github.com/ewilliams-labs/cadence/internal/app"
)

func newReconstructCommand(opts *rootOptions) *cobra.Command {
	var (
		trackID string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Write the audio recovered from a track's mel spectrogram as WAV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			wave, err := a.Orchestrator.Reconstruct(ctx, trackID)
			if err != nil {
				return err
			}
			data, err := wav.Encode(wave)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d samples at %d Hz)\n", out, len(wave.Samples), wave.SampleRate)
			return nil
		},
	}
	cmd.Flags().StringVar(&trackID, "track", "", "catalog track id")
	cmd.Flags().StringVarP(&out, "out", "o", "reconstructed_audio.wav", "output file")
	_ = cmd.MarkFlagRequired("track")
	return cmd
}
