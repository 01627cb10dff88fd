package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driving"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/logger"
)

// Queue and worker defaults for the coordinator.
const (
	DefaultQueueDepth = 32
	DefaultWorkers    = 1
)

// JobCoordinator owns the training-job state machine: it queues
// submitted jobs, runs them through the pipeline on worker goroutines
// and persists every state transition. Terminal states are immutable.
type JobCoordinator struct {
	jobs     driven.JobStore
	datasets driven.DatasetStore
	pipeline *TrainingPipeline

	queue   chan string
	workers int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	runCtx  context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

var _ driving.TrainingService = (*JobCoordinator)(nil)

// NewJobCoordinator creates a coordinator with the given worker count
// and queue depth; zero values take the defaults.
func NewJobCoordinator(jobs driven.JobStore, datasets driven.DatasetStore, pipeline *TrainingPipeline, workers, queueDepth int) *JobCoordinator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	return &JobCoordinator{
		jobs:     jobs,
		datasets: datasets,
		pipeline: pipeline,
		queue:    make(chan string, queueDepth),
		workers:  workers,
		cancels:  map[string]context.CancelFunc{},
	}
}

// Start launches the worker goroutines. Idempotent.
func (c *JobCoordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.started = true
	c.runCtx, c.stop = context.WithCancel(context.Background())
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	logger.Debug("coordinator: started %d workers", c.workers)
}

// Stop cancels running jobs and waits for the workers to drain.
func (c *JobCoordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.stop()
	close(c.queue)
	c.mu.Unlock()
	c.wg.Wait()
}

// Submit enqueues a training job for a dataset.
func (c *JobCoordinator) Submit(ctx context.Context, datasetID string, params domain.TrainingParams) (string, error) {
	if _, err := c.datasets.GetDataset(ctx, datasetID); err != nil {
		return "", err
	}

	job := &domain.TrainingJob{
		ID:        uuid.New().String(),
		DatasetID: datasetID,
		Params:    params,
		State:     domain.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.jobs.Save(ctx, job); err != nil {
		return "", fmt.Errorf("saving job: %w", err)
	}

	// The send must happen under the same lock as the started check:
	// Stop closes the queue, and a send racing the close would panic.
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: coordinator is stopped", domain.ErrResourceExhausted)
	}
	select {
	case c.queue <- job.ID:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		job.State = domain.JobFailed
		job.ErrorKind = domain.ErrorKind(domain.ErrResourceExhausted)
		job.ErrorReason = "training queue is full"
		job.FinishedAt = time.Now().UTC()
		if err := c.jobs.Save(ctx, job); err != nil {
			logger.Warn("coordinator: recording queue-full failure: %v", err)
		}
		return "", fmt.Errorf("%w: training queue is full", domain.ErrResourceExhausted)
	}

	logger.Info("coordinator: queued job %s for dataset %s", job.ID, datasetID)
	return job.ID, nil
}

// Status reports a job's current state.
func (c *JobCoordinator) Status(ctx context.Context, jobID string) (*domain.TrainingJob, error) {
	return c.jobs.Get(ctx, jobID)
}

// List returns all known jobs, newest first.
func (c *JobCoordinator) List(ctx context.Context) ([]domain.TrainingJob, error) {
	return c.jobs.List(ctx)
}

// Cancel requests cancellation of a queued or running job. Queued jobs
// are cancelled immediately; running jobs stop between stages.
func (c *JobCoordinator) Cancel(ctx context.Context, jobID string) error {
	// The whole check-and-transition runs under the coordinator lock,
	// serialized against the worker's dequeue transition in run. Without
	// it a worker holding a stale QUEUED read could overwrite the
	// CANCELLED state persisted here.
	c.mu.Lock()
	defer c.mu.Unlock()

	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.State.Terminal() {
		return fmt.Errorf("%w: job %s is %s", domain.ErrJobNotCancellable, jobID, job.State)
	}

	if cancel, running := c.cancels[jobID]; running {
		cancel()
		logger.Info("coordinator: cancelling running job %s", jobID)
		return nil
	}

	// Still queued: mark terminal now, the worker skips it on dequeue.
	job.State = domain.JobCancelled
	job.FinishedAt = time.Now().UTC()
	if err := c.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("saving cancelled job: %w", err)
	}
	logger.Info("coordinator: cancelled queued job %s", jobID)
	return nil
}

func (c *JobCoordinator) worker() {
	defer c.wg.Done()
	for jobID := range c.queue {
		if c.runCtx.Err() != nil {
			return
		}
		c.run(jobID)
	}
}

// run executes one job end to end and persists its transitions.
func (c *JobCoordinator) run(jobID string) {
	ctx := c.runCtx
	jobCtx, cancel := context.WithCancel(ctx)

	// The QUEUED -> RUNNING transition is atomic with respect to Cancel:
	// load, state check, cancel registration and the RUNNING save all
	// happen under the lock, so a concurrent Cancel either lands before
	// (we see CANCELLED and skip) or after (it finds the cancel func).
	c.mu.Lock()
	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		c.mu.Unlock()
		cancel()
		logger.Warn("coordinator: loading job %s: %v", jobID, err)
		return
	}
	if job.State != domain.JobQueued {
		// Cancelled while waiting in the queue.
		c.mu.Unlock()
		cancel()
		return
	}
	c.cancels[jobID] = cancel
	job.State = domain.JobRunning
	job.StartedAt = time.Now().UTC()
	if err := c.jobs.Save(ctx, job); err != nil {
		delete(c.cancels, jobID)
		c.mu.Unlock()
		cancel()
		logger.Warn("coordinator: saving job %s: %v", jobID, err)
		return
	}
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		delete(c.cancels, jobID)
		c.mu.Unlock()
	}()

	version, runErr := c.pipeline.Run(jobCtx, job, func(stage string) {
		job.Stage = stage
		if err := c.jobs.Save(ctx, job); err != nil {
			logger.Warn("coordinator: saving job %s stage: %v", jobID, err)
		}
	})

	job.Stage = ""
	job.FinishedAt = time.Now().UTC()
	switch {
	case runErr == nil:
		job.State = domain.JobSucceeded
		job.BundleVersion = version
		logger.Info("coordinator: job %s succeeded with bundle %s", jobID, version)
	case errors.Is(runErr, context.Canceled):
		job.State = domain.JobCancelled
		logger.Info("coordinator: job %s cancelled", jobID)
	default:
		job.State = domain.JobFailed
		job.ErrorKind = domain.ErrorKind(runErr)
		job.ErrorReason = runErr.Error()
		logger.Warn("coordinator: job %s failed: %v", jobID, runErr)
	}
	if err := c.jobs.Save(context.Background(), job); err != nil {
		logger.Warn("coordinator: saving job %s result: %v", jobID, err)
	}
}
