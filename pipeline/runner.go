package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/veridata/ingot/config"
	"github.com/veridata/ingot/errors"
)

// Runner is a worker pool that executes queued runs concurrently. One run
// is always a single sequential stage pass; the pool only parallelizes
// across independent release+batch keys.
type Runner struct {
	orchestrator *Orchestrator
	store        *RunStore
	workers      int
	pollInterval time.Duration
	limiter      *rate.Limiter // throttles run dispatch, not stage work
	parentCtx    context.Context
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       *zap.SugaredLogger
	mu           sync.Mutex
}

// NewRunner creates a runner over the orchestrator's run store.
func NewRunner(ctx context.Context, orchestrator *Orchestrator, store *RunStore, cfg config.PipelineConfig, logger *zap.SugaredLogger) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	poll := time.Duration(cfg.PollIntervalSeconds) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	perMinute := cfg.DispatchPerMinute
	if perMinute <= 0 {
		perMinute = 30
	}

	runnerCtx, cancel := context.WithCancel(ctx)
	return &Runner{
		orchestrator: orchestrator,
		store:        store,
		workers:      workers,
		pollInterval: poll,
		limiter:      rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
		parentCtx:    ctx,
		ctx:          runnerCtx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Enqueue records a run for the pool to pick up.
func (r *Runner) Enqueue(releaseID, batchID, dataset string) error {
	return r.store.Enqueue(releaseID, batchID, dataset)
}

// SetOrchestrator swaps the orchestrator used for runs dispatched from
// now on. In-flight runs keep the one they started with. Lets a config
// reload take effect without restarting the pool.
func (r *Runner) SetOrchestrator(o *Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orchestrator = o
}

func (r *Runner) currentOrchestrator() *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orchestrator
}

// Start spawns the workers. Safe to call again after Stop.
func (r *Runner) Start() {
	r.mu.Lock()
	select {
	case <-r.ctx.Done():
		r.ctx, r.cancel = context.WithCancel(r.parentCtx)
	default:
	}
	r.mu.Unlock()

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Infow("Pipeline runner started", "workers", r.workers, "poll_interval", r.pollInterval)
}

// Stop cancels the workers and waits for in-flight runs to finish their
// current stage and record their state.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
	r.logger.Infow("Pipeline runner stopped")
}

// worker polls for queued runs until cancelled.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.processNext(); err != nil {
				select {
				case <-r.ctx.Done():
					return
				default:
				}
				r.logger.Errorw("Worker failed to process run", "worker", id, "error", err)
			}
		}
	}
}

// processNext claims and executes one queued run. An empty queue is not
// an error.
func (r *Runner) processNext() error {
	run, err := r.store.ClaimQueued()
	if errors.IsNotFoundError(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.limiter.Wait(r.ctx); err != nil {
		// Shutting down: put the run back so a later start retries it
		run.Status = StatusQueued
		if requeueErr := r.store.Update(run); requeueErr != nil {
			return requeueErr
		}
		return err
	}

	result, err := r.currentOrchestrator().Execute(r.ctx, run.ReleaseID, run.BatchID)
	if err != nil {
		return errors.Wrapf(err, "run %s failed", run.ID)
	}

	r.logger.Infow("Queued run finished",
		"run", result.Run.ID,
		"release", run.ReleaseID,
		"batch", run.BatchID,
		"status", result.Run.Status,
	)
	return nil
}
