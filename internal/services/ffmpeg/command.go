package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sprocket/internal/queue"
	"sprocket/internal/services"
)

// Invocation is a fully constructed ffmpeg argument list. Cleanup removes
// any scratch files the construction produced (the concat list file) and is
// safe to call unconditionally.
type Invocation struct {
	Args     []string
	listFile string
}

// Cleanup removes scratch files created while building the invocation.
func (inv *Invocation) Cleanup() {
	if inv.listFile != "" {
		_ = os.Remove(inv.listFile)
	}
}

var overlayPositions = map[string]string{
	queue.PositionTopLeft:     "10:10",
	queue.PositionTopRight:    "W-w-10:10",
	queue.PositionBottomLeft:  "10:H-h-10",
	queue.PositionBottomRight: "W-w-10:H-h-10",
	queue.PositionCenter:      "(W-w)/2:(H-h)/2",
}

var audioCodecs = map[string]string{
	queue.AudioFormatMP3:  "libmp3lame",
	queue.AudioFormatAAC:  "aac",
	queue.AudioFormatWAV:  "pcm_s16le",
	queue.AudioFormatFLAC: "flac",
}

// BuildCommand constructs the ffmpeg argument list for a job, writing to
// outputPath. Every invocation emits the machine-readable progress feed on
// stdout and overwrites the output path.
func BuildCommand(job *queue.Job, outputPath string) (*Invocation, error) {
	if job == nil {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "build", "nil job", nil)
	}

	var (
		inv *Invocation
		err error
	)
	switch job.Operation {
	case queue.OpTranscode:
		inv, err = buildTranscode(job)
	case queue.OpCompress:
		inv, err = buildCompress(job)
	case queue.OpWatermark:
		inv, err = buildWatermark(job)
	case queue.OpThumbnail:
		inv, err = buildThumbnail(job)
	case queue.OpExtractAudio:
		inv, err = buildExtractAudio(job)
	case queue.OpCreateGIF:
		inv, err = buildCreateGIF(job)
	case queue.OpAnimatedImage:
		inv, err = buildAnimatedImage(job)
	case queue.OpTrim:
		inv, err = buildTrim(job)
	case queue.OpConcatenate:
		inv, err = buildConcatenate(job, outputPath)
	default:
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "build", fmt.Sprintf("unsupported operation %q", job.Operation), nil)
	}
	if err != nil {
		return nil, err
	}

	inv.Args = append(inv.Args, "-progress", "pipe:1", "-y", outputPath)
	return inv, nil
}

func buildTranscode(job *queue.Job) (*Invocation, error) {
	params := job.Parameters.Transcode
	if params == nil {
		return nil, missingParams(job)
	}
	return &Invocation{Args: []string{
		"-i", job.InputPath,
		"-c:v", params.Codec,
		"-preset", params.Preset,
		"-crf", strconv.Itoa(params.CRF),
		"-c:a", params.AudioCodec,
		"-movflags", "+faststart",
	}}, nil
}

func buildCompress(job *queue.Job) (*Invocation, error) {
	params := job.Parameters.Compress
	if params == nil {
		return nil, missingParams(job)
	}
	args := []string{"-i", job.InputPath}
	if params.VideoBitrateKbps > 0 {
		bitrate := params.VideoBitrateKbps
		args = append(args,
			"-b:v", fmt.Sprintf("%dk", bitrate),
			"-maxrate", fmt.Sprintf("%dk", bitrate*3/2),
			"-bufsize", fmt.Sprintf("%dk", bitrate*2),
		)
	}
	if params.Scale != "" {
		args = append(args, "-vf", "scale="+params.Scale)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "medium",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
	)
	return &Invocation{Args: args}, nil
}

func buildWatermark(job *queue.Job) (*Invocation, error) {
	params := job.Parameters.Watermark
	if params == nil {
		return nil, missingParams(job)
	}
	overlay, ok := overlayPositions[params.Position]
	if !ok {
		overlay = overlayPositions[queue.PositionBottomRight]
	}
	filter := fmt.Sprintf("[1]format=rgba,colorchannelmixer=aa=%s[wm];[0][wm]overlay=%s", formatOpacity(params.Opacity), overlay)
	return &Invocation{Args: []string{
		"-i", job.InputPath,
		"-i", params.WatermarkPath,
		"-filter_complex", filter,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", "23",
		"-c:a", "copy",
		"-movflags", "+faststart",
	}}, nil
}

func buildThumbnail(job *queue.Job) (*Invocation, error) {
	params := job.Parameters.Thumbnail
	if params == nil {
		return nil, missingParams(job)
	}
	args := []string{
		"-i", job.InputPath,
		"-ss", params.Timestamp,
		"-vframes", "1",
	}
	if params.Size != "" {
		filter, err := fitFilter(params.Size, params.Fit)
		if err != nil {
			return nil, err
		}
		args = append(args, "-vf", filter)
	}
	args = append(args, imageQualityArgs(params.Format, params.Quality)...)
	return &Invocation{Args: args}, nil
}

func buildExtractAudio(job *queue.Job) (*Invocation, error) {
	params := job.Parameters.ExtractAudio
	if params == nil {
		return nil, missingParams(job)
	}
	codec, ok := audioCodecs[params.Format]
	if !ok {
		codec = audioCodecs[queue.AudioFormatMP3]
	}
	return &Invocation{Args: []string{
		"-i", job.InputPath,
		"-vn",
		"-c:a", codec,
		"-b:a", params.Bitrate,
	}}, nil
}

func buildCreateGIF(job *queue.Job) (*Invocation, error) {
	params := job.Parameters.GIF
	if params == nil {
		return nil, missingParams(job)
	}
	filter := fmt.Sprintf("fps=%d,scale=%d:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse", params.FPS, params.Scale)
	return &Invocation{Args: []string{
		"-ss", params.StartTime,
		"-t", strconv.Itoa(params.Duration),
		"-i", job.InputPath,
		"-vf", filter,
		"-loop", "0",
	}}, nil
}

func buildAnimatedImage(job *queue.Job) (*Invocation, error) {
	params := job.Parameters.AnimatedImage
	if params == nil {
		return nil, missingParams(job)
	}
	filter := fmt.Sprintf("fps=%d,scale=%d:-1:flags=lanczos", params.FPS, params.Scale)
	return &Invocation{Args: []string{
		"-ss", params.StartTime,
		"-t", strconv.Itoa(params.Duration),
		"-i", job.InputPath,
		"-vf", filter,
		"-c:v", "libwebp",
		"-quality", strconv.Itoa(clampQuality(params.Quality)),
		"-loop", "0",
	}}, nil
}

func buildTrim(job *queue.Job) (*Invocation, error) {
	params := job.Parameters.Trim
	if params == nil {
		return nil, missingParams(job)
	}
	args := []string{
		"-i", job.InputPath,
		"-ss", params.StartTime,
	}
	if params.EndTime != "" {
		args = append(args, "-to", params.EndTime)
	} else if params.Duration > 0 {
		args = append(args, "-t", strconv.Itoa(params.Duration))
	}
	args = append(args, "-c", "copy")
	return &Invocation{Args: args}, nil
}

func buildConcatenate(job *queue.Job, outputPath string) (*Invocation, error) {
	params := job.Parameters.Concatenate
	if params == nil {
		return nil, missingParams(job)
	}
	inputs := append([]string{job.InputPath}, params.Inputs...)
	if len(inputs) < 2 {
		return nil, services.Wrap(services.ErrValidation, "ffmpeg", "build", "concatenate needs at least two inputs", nil)
	}

	var list strings.Builder
	for _, input := range inputs {
		fmt.Fprintf(&list, "file '%s'\n", input)
	}
	listFile := filepath.Join(filepath.Dir(outputPath), fmt.Sprintf("concat_%s.txt", job.ID))
	if err := os.WriteFile(listFile, []byte(list.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write concat list: %w", err)
	}

	return &Invocation{
		Args: []string{
			"-f", "concat",
			"-safe", "0",
			"-i", listFile,
			"-c", "copy",
		},
		listFile: listFile,
	}, nil
}

// fitFilter translates a target size and fit policy into a scale filter.
// Cover fills the frame and crops symmetrically around the center, contain
// letterboxes, and none forces the exact dimensions.
func fitFilter(size, fit string) (string, error) {
	width, height, err := splitSize(size)
	if err != nil {
		return "", err
	}
	switch fit {
	case queue.FitCover:
		return fmt.Sprintf("scale=%s:%s:force_original_aspect_ratio=increase,crop=%s:%s:(iw-%s)/2:(ih-%s)/2", width, height, width, height, width, height), nil
	case queue.FitContain:
		return fmt.Sprintf("scale=%s:%s:force_original_aspect_ratio=decrease,pad=%s:%s:(ow-iw)/2:(oh-ih)/2", width, height, width, height), nil
	case queue.FitNone, "":
		return fmt.Sprintf("scale=%s:%s", width, height), nil
	default:
		return "", services.Wrap(services.ErrValidation, "ffmpeg", "build", fmt.Sprintf("unknown image_fit %q", fit), nil)
	}
}

// imageQualityArgs maps the 0-100 quality scale onto format-native
// arguments. WebP takes the value unchanged, JPEG inverts it onto its 2-31
// scale where lower is better, and PNG is lossless so quality is ignored.
func imageQualityArgs(format string, quality int) []string {
	quality = clampQuality(quality)
	switch format {
	case queue.ImageFormatPNG:
		return nil
	case queue.ImageFormatWebP:
		return []string{"-quality", strconv.Itoa(quality)}
	default:
		jpeg := 31 - quality*29/100
		if jpeg < 2 {
			jpeg = 2
		}
		if jpeg > 31 {
			jpeg = 31
		}
		return []string{"-q:v", strconv.Itoa(jpeg)}
	}
}

func clampQuality(quality int) int {
	if quality < 0 {
		return 0
	}
	if quality > 100 {
		return 100
	}
	return quality
}

func splitSize(size string) (width, height string, err error) {
	normalized := strings.ReplaceAll(size, "x", ":")
	parts := strings.Split(normalized, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", services.Wrap(services.ErrValidation, "ffmpeg", "build", fmt.Sprintf("invalid size %q", size), nil)
	}
	return parts[0], parts[1], nil
}

// formatOpacity renders opacity without a trailing zero tail so filter
// graphs stay stable across runs.
func formatOpacity(opacity float64) string {
	if opacity <= 0 || opacity > 1 {
		opacity = 0.7
	}
	return strconv.FormatFloat(opacity, 'g', -1, 64)
}

func missingParams(job *queue.Job) error {
	return services.Wrap(services.ErrValidation, "ffmpeg", "build", fmt.Sprintf("job %s has no parameters for operation %s", job.ID, job.Operation), nil)
}
