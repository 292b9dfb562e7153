package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sprocket/internal/logging"
	"sprocket/internal/media/ffprobe"
	"sprocket/internal/queue"
	"sprocket/internal/services"
	"sprocket/internal/services/ffmpeg"
)

// Prober inspects media files for duration and stream layout.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Executor drives one job through ffmpeg.
type Executor struct {
	client ffmpeg.Client
	prober Prober
	store  *queue.Store
	logger *slog.Logger
}

// New constructs an Executor. A nil logger discards output.
func New(client ffmpeg.Client, prober Prober, store *queue.Store, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		client: client,
		prober: prober,
		store:  store,
		logger: logging.NewComponentLogger(logger, "executor"),
	}
}

// Run executes the job and publishes its output. The returned error is
// tagged ErrCancelled when ctx was cancelled mid-run and ErrExternalTool
// for process failures; in both cases no output file is left behind.
func (e *Executor) Run(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return services.Wrap(services.ErrValidation, "executor", "run", "nil job", nil)
	}
	log := e.logger.With(logging.String(logging.FieldJobID, job.ID), logging.String(logging.FieldOperation, string(job.Operation)))

	result, err := e.prober.Inspect(ctx, job.InputPath)
	if err != nil {
		return err
	}
	totalSeconds := result.DurationSeconds()

	// Chained compress steps defer bitrate computation to this point, when
	// the predecessor's output exists.
	if params := job.Parameters.Compress; params != nil && params.VideoBitrateKbps == 0 && params.TargetSizeMB > 0 {
		if totalSeconds <= 0 {
			return services.Wrap(services.ErrExternalTool, "executor", "run", fmt.Sprintf("%s has no duration for bitrate computation", job.InputPath), nil)
		}
		params.VideoBitrateKbps = int(params.TargetSizeMB*8192/totalSeconds) - 128
		if params.VideoBitrateKbps <= 0 {
			return services.Wrap(services.ErrExternalTool, "executor", "run", fmt.Sprintf("target size %v MB too small for %.1fs source", params.TargetSizeMB, totalSeconds), nil)
		}
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "executor", "run", "create output directory", err)
	}

	tempPath := partialPath(job.OutputPath)
	inv, err := ffmpeg.BuildCommand(job, tempPath)
	if err != nil {
		return err
	}
	defer inv.Cleanup()

	log.Info("starting ffmpeg", logging.Float64("duration_seconds", totalSeconds))

	runErr := e.client.Run(ctx, inv, totalSeconds, func(percent float64) {
		if err := e.store.UpdateProgress(ctx, job.ID, percent); err != nil {
			log.Warn("progress update failed", logging.Error(err))
		}
	})
	if runErr != nil {
		_ = os.Remove(tempPath)
		if errors.Is(runErr, services.ErrCancelled) {
			log.Info("job cancelled during execution")
		} else {
			log.Error("ffmpeg failed", logging.Error(runErr))
		}
		return runErr
	}

	info, err := os.Stat(tempPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(tempPath)
		return services.Wrap(services.ErrExternalTool, "executor", "run", "process produced no output", err)
	}
	if err := os.Rename(tempPath, job.OutputPath); err != nil {
		_ = os.Remove(tempPath)
		return services.Wrap(services.ErrExternalTool, "executor", "run", "publish output", err)
	}

	log.Info("job finished", logging.String("output", job.OutputPath), logging.Int64("bytes", info.Size()))
	return nil
}

// partialPath names the in-progress output next to the final path so the
// rename at publication stays on one filesystem.
func partialPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".partial" + ext
}
