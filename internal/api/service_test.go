package api_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sprocket/internal/api"
	"sprocket/internal/config"
	"sprocket/internal/executor"
	"sprocket/internal/media/ffprobe"
	"sprocket/internal/profiles"
	"sprocket/internal/queue"
	"sprocket/internal/resolver"
	"sprocket/internal/services"
	"sprocket/internal/services/ffmpeg"
	"sprocket/internal/testsupport"
	"sprocket/internal/worker"
)

type fixture struct {
	cfg     *config.Config
	store   *queue.Store
	queue   *queue.Queue
	pool    *worker.Pool
	service *api.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	q := queue.NewQueue(store)

	registry, err := profiles.Load("")
	if err != nil {
		t.Fatalf("profiles.Load: %v", err)
	}
	prober := ffprobe.NewInspector(cfg.FFprobeBinary())
	res := resolver.New(registry, prober, cfg)
	client := ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.FFmpegBinary()))
	exec := executor.New(client, prober, store, nil)
	pool := worker.NewPool(store, q, exec, cfg.Processing.Workers, nil)
	t.Cleanup(pool.Stop)

	service := api.NewService(store, q, res, pool, registry, cfg.Processing.Workers, nil)
	return &fixture{cfg: cfg, store: store, queue: q, pool: pool, service: service}
}

func (f *fixture) input(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(f.cfg.Paths.InputDir, name)
	testsupport.WriteFile(t, path, 2048)
	return path
}

func waitForView(t *testing.T, service *api.Service, id, want string) api.JobView {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		view, err := service.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if view.Status == want {
			return view
		}
		status := queue.Status(view.Status)
		if status.Terminal() && view.Status != want {
			t.Fatalf("job %s reached %s (%q), want %s", id, view.Status, view.ErrorMessage, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return api.JobView{}
}

func TestSubmitOperationQueuesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.service.SubmitOperation(ctx, f.input(t, "clip.mp4"), "transcode", nil, "")
	if err != nil {
		t.Fatalf("SubmitOperation: %v", err)
	}
	if view.Status != string(queue.StatusQueued) {
		t.Fatalf("status = %s", view.Status)
	}
	if f.queue.Depth() != 1 {
		t.Fatalf("queue depth = %d, want 1", f.queue.Depth())
	}
}

func TestSubmitOperationValidationFailsFast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.SubmitOperation(ctx, f.input(t, "clip.mp4"), "watermark", nil, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	// Nothing was stored or enqueued.
	jobs, err := f.service.ListJobs(ctx, "")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 0 || f.queue.Depth() != 0 {
		t.Fatalf("rejected submission left state: %d jobs, depth %d", len(jobs), f.queue.Depth())
	}
}

func TestSubmitWorkflowIndependentSteps(t *testing.T) {
	f := newFixture(t)

	views, err := f.service.SubmitWorkflow(context.Background(), f.input(t, "clip.mp4"), "social_media_package")
	if err != nil {
		t.Fatalf("SubmitWorkflow: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("submitted %d jobs, want 3", len(views))
	}
	if f.queue.Depth() != 3 {
		t.Fatalf("queue depth = %d, want 3", f.queue.Depth())
	}
}

func TestSubmitWorkflowChainedStepParked(t *testing.T) {
	f := newFixture(t)

	views, err := f.service.SubmitWorkflow(context.Background(), f.input(t, "clip.mp4"), "archive_package")
	if err != nil {
		t.Fatalf("SubmitWorkflow: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("submitted %d jobs, want 2", len(views))
	}
	if f.queue.Depth() != 1 {
		t.Fatalf("queue depth = %d, want 1 (chained step parked)", f.queue.Depth())
	}
	if views[1].DependsOn != views[0].ID {
		t.Fatalf("chained step dependency = %q", views[1].DependsOn)
	}
}

func TestWorkflowRunsEndToEnd(t *testing.T) {
	f := newFixture(t)
	if err := f.pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	views, err := f.service.SubmitWorkflow(context.Background(), f.input(t, "clip.mp4"), "archive_package")
	if err != nil {
		t.Fatalf("SubmitWorkflow: %v", err)
	}

	waitForView(t, f.service, views[0].ID, string(queue.StatusCompleted))
	done := waitForView(t, f.service, views[1].ID, string(queue.StatusCompleted))
	if _, err := os.Stat(done.OutputPath); err != nil {
		t.Fatalf("chained output missing: %v", err)
	}
}

func TestGetJobNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.GetJob(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListJobsFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.SubmitOperation(ctx, f.input(t, "clip.mp4"), "transcode", nil, ""); err != nil {
		t.Fatalf("SubmitOperation: %v", err)
	}

	queued, err := f.service.ListJobs(ctx, "queued")
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("queued jobs = %d, want 1", len(queued))
	}

	if _, err := f.service.ListJobs(ctx, "bogus"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("filter error = %v, want ErrValidation", err)
	}
}

func TestCancelPendingJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.service.SubmitOperation(ctx, f.input(t, "clip.mp4"), "transcode", nil, "")
	if err != nil {
		t.Fatalf("SubmitOperation: %v", err)
	}

	cancelled, err := f.service.CancelJob(ctx, view.ID)
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if !cancelled {
		t.Fatal("pending job not cancelled")
	}

	got, err := f.service.GetJob(ctx, view.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != string(queue.StatusCancelled) {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Progress != 0 {
		t.Fatalf("cancelled pending job progress = %v, want 0", got.Progress)
	}
}

func TestCancelChainedJobCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The chained thumbnail never entered the dispatch queue, but cancel
	// still reaches it.
	views, err := f.service.SubmitWorkflow(ctx, f.input(t, "clip.mp4"), "archive_package")
	if err != nil {
		t.Fatalf("SubmitWorkflow: %v", err)
	}

	cancelled, err := f.service.CancelJob(ctx, views[1].ID)
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if !cancelled {
		t.Fatal("parked chained job not cancelled")
	}
	got, err := f.service.GetJob(ctx, views[1].ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != string(queue.StatusCancelled) {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestCancelTerminalJobReturnsFalse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.service.SubmitOperation(ctx, f.input(t, "clip.mp4"), "transcode", nil, "")
	if err != nil {
		t.Fatalf("SubmitOperation: %v", err)
	}
	if _, err := f.service.CancelJob(ctx, view.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}

	again, err := f.service.CancelJob(ctx, view.ID)
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if again {
		t.Fatal("cancel of terminal job reported success")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.CancelJob(context.Background(), "nope"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestRetryFailedRequeues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.service.SubmitOperation(ctx, f.input(t, "clip.mp4"), "transcode", nil, "")
	if err != nil {
		t.Fatalf("SubmitOperation: %v", err)
	}
	if _, err := f.store.CompareAndSetStatus(ctx, view.ID, queue.StatusQueued, queue.StatusRunning); err != nil {
		t.Fatalf("CompareAndSetStatus: %v", err)
	}
	if _, err := f.store.FinishWithError(ctx, view.ID, queue.StatusRunning, queue.StatusFailed, "boom"); err != nil {
		t.Fatalf("FinishWithError: %v", err)
	}

	retried, err := f.service.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if len(retried) != 1 || retried[0].Status != string(queue.StatusQueued) {
		t.Fatalf("retried = %+v", retried)
	}
}

func TestStatsReflectsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.SubmitOperation(ctx, f.input(t, "clip.mp4"), "transcode", nil, ""); err != nil {
		t.Fatalf("SubmitOperation: %v", err)
	}

	stats, err := f.service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.QueueDepth != 1 || stats.CountsByStatus["queued"] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Workers != f.cfg.Processing.Workers {
		t.Fatalf("workers = %d", stats.Workers)
	}
}

func TestProfileAndWorkflowListings(t *testing.T) {
	f := newFixture(t)

	profileList := f.service.Profiles()
	if len(profileList) == 0 {
		t.Fatal("no profiles listed")
	}
	workflowList := f.service.Workflows()
	if len(workflowList) == 0 {
		t.Fatal("no workflows listed")
	}
	for _, workflow := range workflowList {
		if workflow.Name == "social_media_package" && len(workflow.Steps) != 3 {
			t.Fatalf("social_media_package steps = %d", len(workflow.Steps))
		}
	}
}
