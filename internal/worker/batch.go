package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const maxLineBytes = 1 << 20

type batchLine struct {
	TrackID  string             `json:"track_id"`
	Features map[string]float64 `json:"features"`
}

type batchOutput struct {
	Line   int                      `json:"line"`
	Result *domain.PredictionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// Summary counts the outcome of a batch run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// RunBatch reads JSON lines of {"track_id", "features"} from r, predicts
// each on a pool of workers and writes one JSON line per input to w in input
// order. Blank lines are skipped; malformed lines are reported in the output
// and counted as failures.
func RunBatch(ctx context.Context, predictor Predictor, workers int, r io.Reader, w io.Writer) (Summary, error) {
	pool := NewPool(predictor, workers*2)
	pool.Start(ctx, workers)

	var (
		outputs []batchOutput
		summary Summary
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		for res := range pool.Results() {
			out := batchOutput{Line: res.Job.Seq}
			if res.Err != nil {
				out.Error = res.Err.Error()
			} else {
				pred := res.Prediction
				out.Result = &pred
			}
			outputs = append(outputs, out)
		}
	}()

	var parseFailures []batchOutput
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	var readErr error
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var in batchLine
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			parseFailures = append(parseFailures, batchOutput{Line: lineNo, Error: fmt.Sprintf("invalid json: %v", err)})
			continue
		}
		job := Job{Seq: lineNo, TrackID: in.TrackID, Features: domain.FeatureSet(in.Features)}
		if err := pool.SubmitWait(ctx, job); err != nil {
			readErr = err
			break
		}
	}
	if readErr == nil {
		readErr = scanner.Err()
	}

	pool.Stop()
	<-done

	outputs = append(outputs, parseFailures...)
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Line < outputs[j].Line })

	enc := json.NewEncoder(w)
	for _, out := range outputs {
		summary.Total++
		if out.Error != "" {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		if err := enc.Encode(out); err != nil {
			return summary, fmt.Errorf("worker: write output: %w", err)
		}
	}

	if readErr != nil {
		return summary, fmt.Errorf("worker: read input: %w", readErr)
	}
	return summary, nil
}
