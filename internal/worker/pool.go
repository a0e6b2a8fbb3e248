// Package worker runs predictions on a bounded pool of goroutines.
package worker

import (
	"context"
	"sync"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

// Predictor is the slice of the orchestrator the pool needs.
type Predictor interface {
	Predict(ctx context.Context, trackID string, features domain.FeatureSet) (domain.PredictionResult, error)
}

// Job is one prediction request.
type Job struct {
	Seq      int
	TrackID  string
	Features domain.FeatureSet
}

// Result pairs a job with its outcome.
type Result struct {
	Job        Job
	Prediction domain.PredictionResult
	Err        error
}

// Pool manages workers that each run whole predictions.
type Pool struct {
	predictor Predictor
	jobs      chan Job
	results   chan Result
	wg        sync.WaitGroup
	logger    logging.Logger
}

// NewPool creates a pool with the given queue size. Results are buffered to
// the same depth.
func NewPool(predictor Predictor, queueSize int) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		predictor: predictor,
		jobs:      make(chan Job, queueSize),
		results:   make(chan Result, queueSize),
		logger:    logging.WithFields(logging.Fields{"component": "worker_pool"}),
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- p.processJob(ctx, job)
			}
		}()
	}
}

// Results yields one Result per accepted job. It is closed by Stop.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Stop closes the queue, waits for in-flight jobs and closes Results.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}

// Submit queues a job without blocking and reports whether it was accepted.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Warn("queue full, dropping job", logging.Fields{"track_id": job.TrackID, "seq": job.Seq})
		return false
	}
}

// SubmitWait queues a job, blocking until there is room or ctx is done.
func (p *Pool) SubmitWait(ctx context.Context, job Job) error {
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) processJob(ctx context.Context, job Job) Result {
	pred, err := p.predictor.Predict(ctx, job.TrackID, job.Features)
	if err != nil {
		p.logger.Warn("prediction failed", logging.Fields{"track_id": job.TrackID, "seq": job.Seq, "error": err.Error()})
		return Result{Job: job, Err: err}
	}
	p.logger.Debug("prediction done", logging.Fields{"track_id": job.TrackID, "seq": job.Seq, "label": pred.Label})
	return Result{Job: job, Prediction: pred}
}
