package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"sprocket/internal/api"
	"sprocket/internal/config"
	"sprocket/internal/logging"
	"sprocket/internal/metrics"
	"sprocket/internal/queue"
	"sprocket/internal/worker"
)

type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	queue   *queue.Queue
	pool    *worker.Pool
	service *api.Service

	collector *metrics.Collector

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	server  *apiServer
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	Stats        api.Stats
	JobDBPath    string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, q *queue.Queue, pool *worker.Pool, service *api.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || q == nil || pool == nil || service == nil {
		return nil, errors.New("daemon requires config, store, queue, pool, and service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "sprocketd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		queue:     q,
		pool:      pool,
		service:   service,
		collector: metrics.NewCollector(store, q, pool, cfg.Processing.Workers, logger),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.server = server
	return d, nil
}

// Start acquires the daemon lock, recovers and launches the worker
// pool, and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sprocket daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.pool.Start(runCtx); err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker pool: %w", err)
	}
	if d.server != nil {
		if err := d.server.start(runCtx); err != nil {
			d.pool.Stop()
			cancel()
			d.cancel = nil
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.cfg.Processing.Workers))
	return nil
}

// Stop shuts down the API, drains the worker pool, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.server != nil {
		d.server.stop()
	}
	d.pool.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr reports the bound API address, or empty when the API is disabled.
func (d *Daemon) Addr() string {
	if d.server == nil {
		return ""
	}
	return d.server.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	stats, err := d.service.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Running:      d.running.Load(),
		Stats:        stats,
		JobDBPath:    filepath.Join(d.cfg.Paths.LogDir, "jobs.db"),
		LockFilePath: d.lockPath,
	}, nil
}
