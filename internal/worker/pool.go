package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"sprocket/internal/executor"
	"sprocket/internal/logging"
	"sprocket/internal/queue"
	"sprocket/internal/services"
)

// Pool runs a fixed number of workers against the dispatch queue.
type Pool struct {
	store   *queue.Store
	queue   *queue.Queue
	exec    *executor.Executor
	logger  *slog.Logger
	workers int

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	inflight map[string]context.CancelFunc
}

// NewPool constructs a pool with the given concurrency. A nil logger
// discards output.
func NewPool(store *queue.Store, q *queue.Queue, exec *executor.Executor, workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		store:    store,
		queue:    q,
		exec:     exec,
		logger:   logging.NewComponentLogger(logger, "worker"),
		workers:  workers,
		inflight: make(map[string]context.CancelFunc),
	}
}

// Start recovers persisted work and launches the workers. Jobs left running
// by an interrupted process are marked failed; queued jobs whose turn had
// not come are re-enqueued in their original order. Start is idempotent.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	if err := p.recover(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.running = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(runCtx, i)
	}
	p.logger.Info("worker pool started", logging.Int("workers", p.workers))
	return nil
}

// Stop closes the queue, aborts in-flight jobs, and waits for the workers
// to exit. Stop is idempotent.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	p.queue.Close()
	cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// CancelRunning aborts the named job's execution if this pool is currently
// running it.
func (p *Pool) CancelRunning(id string) bool {
	p.mu.Lock()
	cancel, ok := p.inflight[id]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// RunningCount returns the number of jobs currently executing.
func (p *Pool) RunningCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

func (p *Pool) recover(ctx context.Context) error {
	stale, err := p.store.List(ctx, queue.StatusRunning)
	if err != nil {
		return err
	}
	for _, job := range stale {
		if _, err := p.store.FinishWithError(ctx, job.ID, queue.StatusRunning, queue.StatusFailed, "interrupted by restart"); err != nil {
			return err
		}
		if _, err := p.store.FailDependents(ctx, job.ID, "upstream job failed: interrupted by restart"); err != nil {
			return err
		}
	}

	pending, err := p.store.List(ctx, queue.StatusQueued)
	if err != nil {
		return err
	}
	for _, job := range pending {
		ready, err := p.dependencySatisfied(ctx, job)
		if err != nil {
			return err
		}
		if ready {
			p.queue.Enqueue(job.ID)
		}
	}
	return nil
}

func (p *Pool) dependencySatisfied(ctx context.Context, job *queue.Job) (bool, error) {
	if !job.Chained() {
		return true, nil
	}
	parent, err := p.store.GetByID(ctx, job.DependsOn)
	if err != nil {
		return false, err
	}
	return parent != nil && parent.Status == queue.StatusCompleted, nil
}

func (p *Pool) run(ctx context.Context, index int) {
	defer p.wg.Done()
	log := p.logger.With(logging.Int(logging.FieldWorker, index))
	for {
		id, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		p.process(ctx, log, id)
	}
}

func (p *Pool) process(ctx context.Context, log *slog.Logger, id string) {
	job, err := p.store.GetByID(ctx, id)
	if err != nil {
		log.Error("load job", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}
	if job == nil {
		return
	}

	claimed, err := p.store.CompareAndSetStatus(ctx, id, queue.StatusQueued, queue.StatusRunning)
	if err != nil {
		log.Error("claim job", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}
	if !claimed {
		// Cancelled or claimed elsewhere after dequeue. Nothing to do.
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.inflight[id] = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.inflight, id)
		p.mu.Unlock()
		cancel()
	}()

	runErr := p.exec.Run(jobCtx, job)

	// The run context is cancelled during Stop; terminal status still has
	// to reach the store, so bookkeeping uses a non-cancellable context.
	recordCtx := context.WithoutCancel(ctx)
	if runErr == nil {
		p.finishCompleted(recordCtx, log, id)
		return
	}

	message := services.Details(runErr).Message
	if errors.Is(runErr, services.ErrCancelled) {
		if _, err := p.store.FinishWithError(recordCtx, id, queue.StatusRunning, queue.StatusCancelled, message); err != nil {
			log.Error("record cancellation", logging.String(logging.FieldJobID, id), logging.Error(err))
		}
		if _, err := p.store.FailDependents(recordCtx, id, "upstream job cancelled"); err != nil {
			log.Error("fail dependents", logging.String(logging.FieldJobID, id), logging.Error(err))
		}
		return
	}

	if _, err := p.store.FinishWithError(recordCtx, id, queue.StatusRunning, queue.StatusFailed, message); err != nil {
		log.Error("record failure", logging.String(logging.FieldJobID, id), logging.Error(err))
	}
	if _, err := p.store.FailDependents(recordCtx, id, "upstream job failed: "+message); err != nil {
		log.Error("fail dependents", logging.String(logging.FieldJobID, id), logging.Error(err))
	}
}

// finishCompleted records completion and releases any chained jobs waiting
// on this one.
func (p *Pool) finishCompleted(ctx context.Context, log *slog.Logger, id string) {
	done, err := p.store.CompareAndSetStatus(ctx, id, queue.StatusRunning, queue.StatusCompleted)
	if err != nil {
		log.Error("record completion", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}
	if !done {
		return
	}
	dependents, err := p.store.Dependents(ctx, id)
	if err != nil {
		log.Error("load dependents", logging.String(logging.FieldJobID, id), logging.Error(err))
		return
	}
	for _, dep := range dependents {
		if dep.Status == queue.StatusQueued {
			p.queue.Enqueue(dep.ID)
		}
	}
}
