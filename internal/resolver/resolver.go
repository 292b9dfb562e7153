package resolver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"sprocket/internal/config"
	"sprocket/internal/media/ffprobe"
	"sprocket/internal/profiles"
	"sprocket/internal/queue"
	"sprocket/internal/services"
)

// Prober inspects media files; the resolver uses it to compute target
// bitrates from source duration.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Resolver builds job records from operation, profile, and workflow
// submissions.
type Resolver struct {
	registry  *profiles.Registry
	prober    Prober
	outputDir string

	now   func() time.Time
	newID func() string
}

// New constructs a Resolver writing derived outputs into the configured
// output directory.
func New(registry *profiles.Registry, prober Prober, cfg *config.Config) *Resolver {
	return &Resolver{
		registry:  registry,
		prober:    prober,
		outputDir: cfg.Paths.OutputDir,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// FromOperation validates rawParams against the named operation and returns
// a ready-to-store job.
func (r *Resolver) FromOperation(ctx context.Context, input, operation string, rawParams map[string]any, outputOverride string) (*queue.Job, error) {
	op, ok := queue.ParseOperation(operation)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "resolver", "operation", fmt.Sprintf("unknown operation %q", operation), nil)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, services.Wrap(services.ErrValidation, "resolver", "operation", "input path required", nil)
	}

	params, err := r.buildParameters(ctx, op, input, rawParams, false)
	if err != nil {
		return nil, err
	}

	job := &queue.Job{
		ID:         r.newID(),
		Operation:  op,
		InputPath:  input,
		OutputPath: r.outputPath(op, input, params, outputOverride),
		Parameters: params,
		Status:     queue.StatusQueued,
	}
	return job, nil
}

// FromProfile merges the named profile's defaults with overrides (overrides
// win) and resolves the result as an operation submission.
func (r *Resolver) FromProfile(ctx context.Context, input, profileName string, overrides map[string]any, outputOverride string) (*queue.Job, error) {
	profile, err := r.registry.ResolveProfile(profileName)
	if err != nil {
		return nil, err
	}
	merged := mergeParams(profile.Parameters, overrides)
	job, err := r.FromOperation(ctx, input, string(profile.Operation), merged, outputOverride)
	if err != nil {
		return nil, err
	}
	job.Profile = profile.Name
	return job, nil
}

// FromWorkflow expands the named workflow into an ordered job sequence.
// A chained step reads the preceding step's output and carries a dependency
// on its id; everything else reads the workflow input directly.
func (r *Resolver) FromWorkflow(ctx context.Context, input, workflowName string) ([]*queue.Job, error) {
	workflow, err := r.registry.ResolveWorkflow(workflowName)
	if err != nil {
		return nil, err
	}

	jobs := make([]*queue.Job, 0, len(workflow.Jobs))
	for i, step := range workflow.Jobs {
		profile, err := r.registry.ResolveProfile(step.Profile)
		if err != nil {
			return nil, err
		}

		stepInput := input
		chained := step.Chained && i > 0
		if chained {
			stepInput = jobs[i-1].OutputPath
		}

		merged := mergeParams(profile.Parameters, step.Overrides)
		op := string(profile.Operation)
		params, err := r.buildParametersFor(ctx, op, stepInput, merged, chained)
		if err != nil {
			return nil, err
		}

		job := &queue.Job{
			ID:         r.newID(),
			Operation:  profile.Operation,
			InputPath:  stepInput,
			OutputPath: r.outputPath(profile.Operation, stepInput, params, ""),
			Parameters: params,
			Status:     queue.StatusQueued,
			Profile:    profile.Name,
			Workflow:   workflow.Name,
		}
		if chained {
			job.DependsOn = jobs[i-1].ID
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *Resolver) buildParametersFor(ctx context.Context, operation, input string, raw map[string]any, chained bool) (queue.Parameters, error) {
	op, ok := queue.ParseOperation(operation)
	if !ok {
		return queue.Parameters{}, services.Wrap(services.ErrValidation, "resolver", "operation", fmt.Sprintf("unknown operation %q", operation), nil)
	}
	return r.buildParameters(ctx, op, input, raw, chained)
}

// buildParameters normalizes and validates a raw parameter map into the
// typed record for op. For chained workflow steps the input file does not
// exist yet, so size-targeted bitrate computation is deferred to execution
// time instead of probing here.
func (r *Resolver) buildParameters(ctx context.Context, op queue.Operation, input string, raw map[string]any, chained bool) (queue.Parameters, error) {
	p := newParams(raw)
	var out queue.Parameters

	switch op {
	case queue.OpTranscode:
		out.Transcode = &queue.TranscodeParams{
			Codec:      p.str("codec", "libx264"),
			Preset:     p.str("preset", "medium"),
			CRF:        p.integer("crf", 23),
			AudioCodec: p.str("audio_codec", "aac"),
		}
		if crf := out.Transcode.CRF; crf < 0 || crf > 51 {
			return out, validationError("crf must be between 0 and 51, got %d", crf)
		}

	case queue.OpCompress:
		out.Compress = &queue.CompressParams{
			TargetSizeMB: p.float("target_size_mb", 0),
			Scale:        normalizeScale(p.str("scale", "")),
		}
		if out.Compress.TargetSizeMB < 0 {
			return out, validationError("target_size_mb must be positive, got %v", out.Compress.TargetSizeMB)
		}
		if out.Compress.TargetSizeMB > 0 && !chained {
			bitrate, err := r.computeBitrate(ctx, input, out.Compress.TargetSizeMB)
			if err != nil {
				return out, err
			}
			out.Compress.VideoBitrateKbps = bitrate
		}

	case queue.OpWatermark:
		out.Watermark = &queue.WatermarkParams{
			WatermarkPath: p.str("watermark_path", ""),
			Position:      p.enum("position", queue.PositionBottomRight),
			Opacity:       p.float("opacity", 0.7),
		}
		if out.Watermark.WatermarkPath == "" {
			return out, validationError("watermark_path is required")
		}
		switch out.Watermark.Position {
		case queue.PositionTopLeft, queue.PositionTopRight, queue.PositionBottomLeft, queue.PositionBottomRight, queue.PositionCenter:
		default:
			return out, validationError("unknown position %q", out.Watermark.Position)
		}
		if out.Watermark.Opacity <= 0 || out.Watermark.Opacity > 1 {
			return out, validationError("opacity must be in (0, 1], got %v", out.Watermark.Opacity)
		}

	case queue.OpThumbnail:
		out.Thumbnail = &queue.ThumbnailParams{
			Timestamp: p.str("timestamp", "00:00:01"),
			Size:      normalizeScale(p.enum("image_size", "")),
			Fit:       p.enum("image_fit", queue.FitCover),
			Format:    normalizeImageFormat(p.enum("image_format", queue.ImageFormatWebP)),
			Quality:   p.integer("image_quality", 75),
		}
		switch out.Thumbnail.Fit {
		case queue.FitCover, queue.FitContain, queue.FitNone:
		default:
			return out, validationError("unknown image_fit %q", out.Thumbnail.Fit)
		}
		switch out.Thumbnail.Format {
		case queue.ImageFormatWebP, queue.ImageFormatJPG, queue.ImageFormatPNG:
		default:
			return out, validationError("unknown image_format %q", out.Thumbnail.Format)
		}
		if q := out.Thumbnail.Quality; q < 0 || q > 100 {
			return out, validationError("image_quality must be between 0 and 100, got %d", q)
		}

	case queue.OpExtractAudio:
		out.ExtractAudio = &queue.ExtractAudioParams{
			Format:  p.enum("audio_format", queue.AudioFormatMP3),
			Bitrate: p.str("bitrate", "192k"),
		}
		switch out.ExtractAudio.Format {
		case queue.AudioFormatMP3, queue.AudioFormatAAC, queue.AudioFormatWAV, queue.AudioFormatFLAC:
		default:
			return out, validationError("unknown audio_format %q", out.ExtractAudio.Format)
		}

	case queue.OpCreateGIF:
		out.GIF = &queue.GIFParams{
			StartTime: p.str("start_time", "00:00:00"),
			Duration:  p.integer("duration", 5),
			FPS:       p.integer("fps", 10),
			Scale:     p.integer("scale", 480),
		}
		if out.GIF.Duration <= 0 || out.GIF.FPS <= 0 || out.GIF.Scale <= 0 {
			return out, validationError("duration, fps, and scale must be positive")
		}

	case queue.OpAnimatedImage:
		out.AnimatedImage = &queue.AnimatedImageParams{
			StartTime: p.str("start_time", "00:00:00"),
			Duration:  p.integer("duration", 5),
			FPS:       p.integer("fps", 10),
			Scale:     p.integer("scale", 480),
			Quality:   p.integer("quality", 80),
		}
		if out.AnimatedImage.Duration <= 0 || out.AnimatedImage.FPS <= 0 || out.AnimatedImage.Scale <= 0 {
			return out, validationError("duration, fps, and scale must be positive")
		}
		if q := out.AnimatedImage.Quality; q < 0 || q > 100 {
			return out, validationError("quality must be between 0 and 100, got %d", q)
		}

	case queue.OpTrim:
		out.Trim = &queue.TrimParams{
			StartTime: p.str("start_time", ""),
			EndTime:   p.str("end_time", ""),
			Duration:  p.integer("duration", 0),
		}
		if out.Trim.StartTime == "" {
			return out, validationError("start_time is required")
		}
		if out.Trim.EndTime == "" && out.Trim.Duration <= 0 {
			return out, validationError("one of end_time or duration is required")
		}
		if out.Trim.EndTime != "" && out.Trim.Duration > 0 {
			return out, validationError("end_time and duration are mutually exclusive")
		}

	case queue.OpConcatenate:
		out.Concatenate = &queue.ConcatenateParams{
			Inputs: p.strings("inputs"),
		}
		if len(out.Concatenate.Inputs) == 0 {
			return out, validationError("inputs must list at least one additional file")
		}

	default:
		return out, validationError("unsupported operation %q", op)
	}

	if err := p.unexpected(); err != nil {
		return out, err
	}
	return out, nil
}

// computeBitrate derives the video bitrate in kbps for a size-targeted
// compress from the probed source duration, reserving 128 kbps for audio.
// The computation depends only on the target size and the file's duration,
// so identical submissions always produce identical parameters.
func (r *Resolver) computeBitrate(ctx context.Context, input string, targetSizeMB float64) (int, error) {
	result, err := r.prober.Inspect(ctx, input)
	if err != nil {
		return 0, err
	}
	duration := result.DurationSeconds()
	if duration <= 0 {
		return 0, validationError("cannot compute target bitrate: %s has no duration", input)
	}
	bitrate := int(targetSizeMB*8192/duration) - 128
	if bitrate <= 0 {
		return 0, validationError("target_size_mb %v is too small for a %.1fs source", targetSizeMB, duration)
	}
	return bitrate, nil
}

// outputPath returns the override when given, otherwise derives
// {stem}_{operation}_{timestamp}.{ext} under the output directory. Either
// way the extension is reconciled to the operation's effective output
// format.
func (r *Resolver) outputPath(op queue.Operation, input string, params queue.Parameters, override string) string {
	ext := outputExtension(op, input, params)
	if override = strings.TrimSpace(override); override != "" {
		return forceExtension(override, ext)
	}
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	name := fmt.Sprintf("%s_%s_%s%s", stem, op, r.now().Format("20060102_150405"), ext)
	return filepath.Join(r.outputDir, name)
}

func outputExtension(op queue.Operation, input string, params queue.Parameters) string {
	switch op {
	case queue.OpThumbnail:
		if params.Thumbnail != nil {
			return "." + params.Thumbnail.Format
		}
		return ".webp"
	case queue.OpExtractAudio:
		if params.ExtractAudio != nil {
			return "." + params.ExtractAudio.Format
		}
		return ".mp3"
	case queue.OpCreateGIF:
		return ".gif"
	case queue.OpAnimatedImage:
		return ".webp"
	default:
		if ext := filepath.Ext(input); ext != "" {
			return ext
		}
		return ".mp4"
	}
}

func forceExtension(path, ext string) string {
	current := filepath.Ext(path)
	if strings.EqualFold(current, ext) {
		return path
	}
	return strings.TrimSuffix(path, current) + ext
}

// normalizeScale accepts both "1280x720" and "1280:720" and emits the
// colon form ffmpeg filters use.
func normalizeScale(scale string) string {
	return strings.ReplaceAll(strings.TrimSpace(scale), "x", ":")
}

func normalizeImageFormat(format string) string {
	if format == "jpeg" {
		return queue.ImageFormatJPG
	}
	return format
}

func mergeParams(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}
	return merged
}

func validationError(format string, args ...any) error {
	return services.Wrap(services.ErrValidation, "resolver", "parameters", fmt.Sprintf(format, args...), nil)
}
