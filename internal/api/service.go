package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sprocket/internal/logging"
	"sprocket/internal/profiles"
	"sprocket/internal/queue"
	"sprocket/internal/resolver"
	"sprocket/internal/services"
	"sprocket/internal/worker"
)

// Service ties submission, lookup, and cancellation together over the
// scheduling core.
type Service struct {
	store    *queue.Store
	queue    *queue.Queue
	resolver *resolver.Resolver
	pool     *worker.Pool
	registry *profiles.Registry
	logger   *slog.Logger
	workers  int
}

// NewService constructs the service layer. A nil logger discards output.
func NewService(store *queue.Store, q *queue.Queue, res *resolver.Resolver, pool *worker.Pool, registry *profiles.Registry, workers int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		store:    store,
		queue:    q,
		resolver: res,
		pool:     pool,
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "api"),
		workers:  workers,
	}
}

// SubmitOperation validates and registers a direct operation request,
// returning the created job.
func (s *Service) SubmitOperation(ctx context.Context, input, operation string, params map[string]any, outputOverride string) (JobView, error) {
	job, err := s.resolver.FromOperation(ctx, input, operation, params, outputOverride)
	if err != nil {
		return JobView{}, err
	}
	return s.register(ctx, job)
}

// SubmitProfile resolves the named profile with overrides and registers the
// resulting job.
func (s *Service) SubmitProfile(ctx context.Context, input, profileName string, overrides map[string]any, outputOverride string) (JobView, error) {
	job, err := s.resolver.FromProfile(ctx, input, profileName, overrides, outputOverride)
	if err != nil {
		return JobView{}, err
	}
	return s.register(ctx, job)
}

// SubmitWorkflow expands the named workflow and registers every step.
// Chained steps are stored immediately but only dispatched once their
// predecessor completes.
func (s *Service) SubmitWorkflow(ctx context.Context, input, workflowName string) ([]JobView, error) {
	jobs, err := s.resolver.FromWorkflow(ctx, input, workflowName)
	if err != nil {
		return nil, err
	}

	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		view, err := s.register(ctx, job)
		if err != nil {
			return views, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *Service) register(ctx context.Context, job *queue.Job) (JobView, error) {
	if err := s.store.Put(ctx, job); err != nil {
		return JobView{}, err
	}
	if !job.Chained() {
		s.queue.Enqueue(job.ID)
	}
	s.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldOperation, string(job.Operation)),
		logging.Bool("chained", job.Chained()))
	return FromJob(job), nil
}

// GetJob fetches a single job.
func (s *Service) GetJob(ctx context.Context, id string) (JobView, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	if job == nil {
		return JobView{}, services.Wrap(services.ErrNotFound, "api", "get", fmt.Sprintf("job %s not found", id), nil)
	}
	return FromJob(job), nil
}

// ListJobs returns jobs in submission order, optionally filtered by status.
func (s *Service) ListJobs(ctx context.Context, statusFilter string) ([]JobView, error) {
	var statuses []queue.Status
	if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list", fmt.Sprintf("unknown status %q", trimmed), nil)
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// CancelJob requests cancellation and reports whether one was initiated.
// A job still waiting in the dispatch queue (or parked behind a chained
// predecessor) is cancelled immediately; a running job gets a best-effort
// termination signal. Terminal jobs return false.
func (s *Service) CancelJob(ctx context.Context, id string) (bool, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, services.Wrap(services.ErrNotFound, "api", "cancel", fmt.Sprintf("job %s not found", id), nil)
	}

	// Still in the dispatch queue.
	removed, err := s.queue.CancelIfPending(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		s.logger.Info("job cancelled while pending", logging.String(logging.FieldJobID, id))
		return true, nil
	}

	// Queued but never dispatched: a chained step waiting on its
	// predecessor.
	flipped, err := s.store.FinishWithError(ctx, id, queue.StatusQueued, queue.StatusCancelled, "cancelled before execution")
	if err != nil {
		return false, err
	}
	if flipped {
		if _, err := s.store.FailDependents(ctx, id, "upstream job cancelled"); err != nil {
			return true, err
		}
		s.logger.Info("chained job cancelled", logging.String(logging.FieldJobID, id))
		return true, nil
	}

	if s.pool.CancelRunning(id) {
		s.logger.Info("cancellation signalled to running job", logging.String(logging.FieldJobID, id))
		return true, nil
	}
	return false, nil
}

// RetryFailed resets failed jobs to queued and dispatches the ones whose
// dependencies are satisfied. With no ids, every failed job is retried.
func (s *Service) RetryFailed(ctx context.Context, ids ...string) ([]JobView, error) {
	retried, err := s.store.RetryFailed(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, job := range retried {
		ready := !job.Chained()
		if !ready {
			parent, err := s.store.GetByID(ctx, job.DependsOn)
			if err != nil {
				return nil, err
			}
			ready = parent != nil && parent.Status == queue.StatusCompleted
		}
		if ready {
			s.queue.Enqueue(job.ID)
		}
	}
	return FromJobs(retried), nil
}

// ClearCompleted removes completed jobs and returns the count.
func (s *Service) ClearCompleted(ctx context.Context) (int64, error) {
	return s.store.ClearCompleted(ctx)
}

// ClearFailed removes failed and cancelled jobs and returns the count.
func (s *Service) ClearFailed(ctx context.Context) (int64, error) {
	return s.store.ClearFailed(ctx)
}

// Stats summarizes scheduler state.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	byStatus := make(map[string]int, len(counts))
	for status, count := range counts {
		byStatus[string(status)] = count
	}
	return Stats{
		QueueDepth:     s.queue.Depth(),
		RunningCount:   s.pool.RunningCount(),
		CountsByStatus: byStatus,
		Workers:        s.workers,
	}, nil
}

// Profiles lists the available profiles.
func (s *Service) Profiles() []ProfileView {
	list := s.registry.Profiles()
	views := make([]ProfileView, 0, len(list))
	for _, profile := range list {
		views = append(views, FromProfile(profile))
	}
	return views
}

// Workflows lists the available workflows.
func (s *Service) Workflows() []WorkflowView {
	list := s.registry.Workflows()
	views := make([]WorkflowView, 0, len(list))
	for _, workflow := range list {
		views = append(views, FromWorkflow(workflow))
	}
	return views
}
