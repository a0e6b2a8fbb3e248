package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/app"
	"github.com/ewilliams-labs/cadence/internal/worker"
)

func newBatchCommand(opts *rootOptions) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Classify JSON lines of {track_id, features} on a worker pool",
		Long: `batch reads one JSON object per line, each with a "track_id" and a
"features" object, and writes one JSON line per input in input order with
either a "result" or an "error".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			r, closeIn, err := openInput(in)
			if err != nil {
				return err
			}
			defer closeIn()

			w, closeOut, err := openOutput(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			summary, err := worker.RunBatch(ctx, a.Orchestrator, opts.cfg.Batch.Workers, r, w)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "processed %d lines: %d succeeded, %d failed\n",
				summary.Total, summary.Succeeded, summary.Failed)
			return err
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "input file, - for stdin")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().Int("workers", 4, "concurrent predictions")
	bind(opts.v, cmd.Flags(), map[string]string{"batch.workers": "workers"})
	return cmd
}

func openInput(path string) (io.Reader, func() error, error) {
	if path == "-" || path == "" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, f.Close, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "-" || path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
