package queue

// Enumerated parameter values. Raw inputs are trimmed and lower-cased by the
// resolver before they are compared against these.
const (
	FitCover   = "cover"
	FitContain = "contain"
	FitNone    = "none"

	ImageFormatWebP = "webp"
	ImageFormatJPG  = "jpg"
	ImageFormatPNG  = "png"

	AudioFormatMP3  = "mp3"
	AudioFormatAAC  = "aac"
	AudioFormatWAV  = "wav"
	AudioFormatFLAC = "flac"

	PositionTopLeft     = "top-left"
	PositionTopRight    = "top-right"
	PositionBottomLeft  = "bottom-left"
	PositionBottomRight = "bottom-right"
	PositionCenter      = "center"
)

// TranscodeParams configures a codec conversion.
type TranscodeParams struct {
	Codec      string `json:"codec"`
	Preset     string `json:"preset"`
	CRF        int    `json:"crf"`
	AudioCodec string `json:"audio_codec"`
}

// CompressParams configures size reduction. When TargetSizeMB is set the
// resolver computes VideoBitrateKbps from the probed source duration; the
// value is persisted so identical inputs always produce identical commands.
type CompressParams struct {
	TargetSizeMB     float64 `json:"target_size_mb,omitempty"`
	Scale            string  `json:"scale,omitempty"`
	VideoBitrateKbps int     `json:"video_bitrate_kbps,omitempty"`
}

// WatermarkParams configures an image overlay.
type WatermarkParams struct {
	WatermarkPath string  `json:"watermark_path"`
	Position      string  `json:"position"`
	Opacity       float64 `json:"opacity"`
}

// ThumbnailParams configures still-frame extraction. Size is normalized to
// "W:H" form; when empty the source's native dimensions are used and no
// scaling arguments are emitted.
type ThumbnailParams struct {
	Timestamp string `json:"timestamp"`
	Size      string `json:"image_size,omitempty"`
	Fit       string `json:"image_fit"`
	Format    string `json:"image_format"`
	Quality   int    `json:"image_quality"`
}

// ExtractAudioParams configures audio demux/encode.
type ExtractAudioParams struct {
	Format  string `json:"audio_format"`
	Bitrate string `json:"bitrate"`
}

// GIFParams configures animated GIF creation.
type GIFParams struct {
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	FPS       int    `json:"fps"`
	Scale     int    `json:"scale"`
}

// AnimatedImageParams configures animated WebP creation.
type AnimatedImageParams struct {
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
	FPS       int    `json:"fps"`
	Scale     int    `json:"scale"`
	Quality   int    `json:"quality"`
}

// TrimParams configures a stream-copy cut. Exactly one of EndTime or
// Duration is set.
type TrimParams struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time,omitempty"`
	Duration  int    `json:"duration,omitempty"`
}

// ConcatenateParams lists the additional inputs appended after the job's
// primary input.
type ConcatenateParams struct {
	Inputs []string `json:"inputs"`
}

// Parameters is the tagged per-operation parameter record. Exactly one field
// matching the job's operation is non-nil; validation happens once at the
// resolver boundary and is never repeated downstream.
type Parameters struct {
	Transcode     *TranscodeParams     `json:"transcode,omitempty"`
	Compress      *CompressParams      `json:"compress,omitempty"`
	Watermark     *WatermarkParams     `json:"watermark,omitempty"`
	Thumbnail     *ThumbnailParams     `json:"thumbnail,omitempty"`
	ExtractAudio  *ExtractAudioParams  `json:"extract_audio,omitempty"`
	GIF           *GIFParams           `json:"create_gif,omitempty"`
	AnimatedImage *AnimatedImageParams `json:"create_animated_image,omitempty"`
	Trim          *TrimParams          `json:"trim,omitempty"`
	Concatenate   *ConcatenateParams   `json:"concatenate,omitempty"`
}
