package ffmpeg

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"sprocket/internal/queue"
)

func argString(t *testing.T, job *queue.Job, output string) string {
	t.Helper()
	inv, err := BuildCommand(job, output)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}
	t.Cleanup(inv.Cleanup)
	return strings.Join(inv.Args, " ")
}

func TestBuildTranscode(t *testing.T) {
	job := &queue.Job{
		ID:        "j1",
		Operation: queue.OpTranscode,
		InputPath: "/in/video.mp4",
		Parameters: queue.Parameters{Transcode: &queue.TranscodeParams{
			Codec:      "libx264",
			Preset:     "fast",
			CRF:        23,
			AudioCodec: "aac",
		}},
	}
	args := argString(t, job, "/out/video.mp4")
	want := "-i /in/video.mp4 -c:v libx264 -preset fast -crf 23 -c:a aac -movflags +faststart -progress pipe:1 -y /out/video.mp4"
	if args != want {
		t.Fatalf("args = %q\nwant %q", args, want)
	}
}

func TestBuildCompressWithBitrateAndScale(t *testing.T) {
	job := &queue.Job{
		ID:        "j2",
		Operation: queue.OpCompress,
		InputPath: "/in/video.mp4",
		Parameters: queue.Parameters{Compress: &queue.CompressParams{
			TargetSizeMB:     50,
			Scale:            "1280:720",
			VideoBitrateKbps: 1000,
		}},
	}
	args := argString(t, job, "/out/video.mp4")
	for _, fragment := range []string{
		"-b:v 1000k -maxrate 1500k -bufsize 2000k",
		"-vf scale=1280:720",
		"-c:v libx264 -preset medium -c:a aac -b:a 128k",
	} {
		if !strings.Contains(args, fragment) {
			t.Fatalf("args %q missing %q", args, fragment)
		}
	}
}

func TestBuildCompressWithoutTargets(t *testing.T) {
	job := &queue.Job{
		ID:         "j3",
		Operation:  queue.OpCompress,
		InputPath:  "/in/video.mp4",
		Parameters: queue.Parameters{Compress: &queue.CompressParams{}},
	}
	args := argString(t, job, "/out/video.mp4")
	if strings.Contains(args, "-b:v") || strings.Contains(args, "-vf") {
		t.Fatalf("unexpected bitrate or scale args: %q", args)
	}
}

func TestBuildWatermarkPositions(t *testing.T) {
	cases := map[string]string{
		queue.PositionTopLeft:     "overlay=10:10",
		queue.PositionTopRight:    "overlay=W-w-10:10",
		queue.PositionBottomLeft:  "overlay=10:H-h-10",
		queue.PositionBottomRight: "overlay=W-w-10:H-h-10",
		queue.PositionCenter:      "overlay=(W-w)/2:(H-h)/2",
	}
	for position, fragment := range cases {
		job := &queue.Job{
			ID:        "j4",
			Operation: queue.OpWatermark,
			InputPath: "/in/video.mp4",
			Parameters: queue.Parameters{Watermark: &queue.WatermarkParams{
				WatermarkPath: "/assets/logo.png",
				Position:      position,
				Opacity:       0.7,
			}},
		}
		args := argString(t, job, "/out/video.mp4")
		if !strings.Contains(args, "colorchannelmixer=aa=0.7[wm]") {
			t.Fatalf("opacity missing from filter: %q", args)
		}
		if !strings.Contains(args, fragment) {
			t.Fatalf("position %s: args %q missing %q", position, args, fragment)
		}
	}
}

func TestFitFilter(t *testing.T) {
	cases := []struct {
		fit  string
		want string
	}{
		{queue.FitCover, "scale=1280:720:force_original_aspect_ratio=increase,crop=1280:720:(iw-1280)/2:(ih-720)/2"},
		{queue.FitContain, "scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2"},
		{queue.FitNone, "scale=1280:720"},
	}
	for _, tc := range cases {
		got, err := fitFilter("1280:720", tc.fit)
		if err != nil {
			t.Fatalf("fitFilter(%s): %v", tc.fit, err)
		}
		if got != tc.want {
			t.Fatalf("fitFilter(%s) = %q, want %q", tc.fit, got, tc.want)
		}
	}

	if _, err := fitFilter("1280:720", "diagonal"); err == nil {
		t.Fatal("expected error for unknown fit")
	}
	if _, err := fitFilter("wide", queue.FitCover); err == nil {
		t.Fatal("expected error for unparseable size")
	}
}

func TestFitFilterAcceptsXSeparator(t *testing.T) {
	got, err := fitFilter("640x360", queue.FitNone)
	if err != nil {
		t.Fatalf("fitFilter: %v", err)
	}
	if got != "scale=640:360" {
		t.Fatalf("fitFilter = %q", got)
	}
}

func TestImageQualityArgs(t *testing.T) {
	cases := []struct {
		format  string
		quality int
		want    []string
	}{
		{queue.ImageFormatWebP, 75, []string{"-quality", "75"}},
		{queue.ImageFormatWebP, 150, []string{"-quality", "100"}},
		{queue.ImageFormatPNG, 75, nil},
		{queue.ImageFormatJPG, 100, []string{"-q:v", "2"}},
		{queue.ImageFormatJPG, 0, []string{"-q:v", "31"}},
		{queue.ImageFormatJPG, 75, []string{"-q:v", "10"}},
	}
	for _, tc := range cases {
		got := imageQualityArgs(tc.format, tc.quality)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("imageQualityArgs(%s, %d) = %v, want %v", tc.format, tc.quality, got, tc.want)
		}
	}
}

func TestBuildThumbnailOmitsScaleWithoutSize(t *testing.T) {
	job := &queue.Job{
		ID:        "j5",
		Operation: queue.OpThumbnail,
		InputPath: "/in/video.mp4",
		Parameters: queue.Parameters{Thumbnail: &queue.ThumbnailParams{
			Timestamp: "00:00:01",
			Fit:       queue.FitCover,
			Format:    queue.ImageFormatWebP,
			Quality:   75,
		}},
	}
	args := argString(t, job, "/out/thumb.webp")
	if strings.Contains(args, "-vf") {
		t.Fatalf("scale args emitted without image_size: %q", args)
	}
	if !strings.Contains(args, "-vframes 1") {
		t.Fatalf("missing single frame arg: %q", args)
	}
	if !strings.Contains(args, "-quality 75") {
		t.Fatalf("missing webp quality: %q", args)
	}
}

func TestBuildExtractAudioCodecMap(t *testing.T) {
	cases := map[string]string{
		queue.AudioFormatMP3:  "libmp3lame",
		queue.AudioFormatAAC:  "aac",
		queue.AudioFormatWAV:  "pcm_s16le",
		queue.AudioFormatFLAC: "flac",
	}
	for format, codec := range cases {
		job := &queue.Job{
			ID:        "j6",
			Operation: queue.OpExtractAudio,
			InputPath: "/in/video.mp4",
			Parameters: queue.Parameters{ExtractAudio: &queue.ExtractAudioParams{
				Format:  format,
				Bitrate: "192k",
			}},
		}
		args := argString(t, job, "/out/audio."+format)
		if !strings.Contains(args, "-vn -c:a "+codec+" -b:a 192k") {
			t.Fatalf("format %s: args %q missing codec %s", format, args, codec)
		}
	}
}

func TestBuildCreateGIF(t *testing.T) {
	job := &queue.Job{
		ID:        "j7",
		Operation: queue.OpCreateGIF,
		InputPath: "/in/video.mp4",
		Parameters: queue.Parameters{GIF: &queue.GIFParams{
			StartTime: "00:00:02",
			Duration:  5,
			FPS:       10,
			Scale:     480,
		}},
	}
	args := argString(t, job, "/out/clip.gif")
	if !strings.HasPrefix(args, "-ss 00:00:02 -t 5 -i /in/video.mp4") {
		t.Fatalf("seek args out of order: %q", args)
	}
	want := "fps=10,scale=480:-1:flags=lanczos,split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse"
	if !strings.Contains(args, want) {
		t.Fatalf("palette filter missing: %q", args)
	}
	if !strings.Contains(args, "-loop 0") {
		t.Fatalf("loop arg missing: %q", args)
	}
}

func TestBuildAnimatedImage(t *testing.T) {
	job := &queue.Job{
		ID:        "j8",
		Operation: queue.OpAnimatedImage,
		InputPath: "/in/video.mp4",
		Parameters: queue.Parameters{AnimatedImage: &queue.AnimatedImageParams{
			StartTime: "0",
			Duration:  3,
			FPS:       12,
			Scale:     320,
			Quality:   80,
		}},
	}
	args := argString(t, job, "/out/clip.webp")
	if !strings.Contains(args, "-c:v libwebp -quality 80 -loop 0") {
		t.Fatalf("webp encode args missing: %q", args)
	}
	if strings.Contains(args, "palettegen") {
		t.Fatalf("animated webp must not use gif palette: %q", args)
	}
}

func TestBuildTrim(t *testing.T) {
	base := queue.Parameters{Trim: &queue.TrimParams{StartTime: "00:00:05", EndTime: "00:00:15"}}
	job := &queue.Job{ID: "j9", Operation: queue.OpTrim, InputPath: "/in/video.mp4", Parameters: base}
	args := argString(t, job, "/out/cut.mp4")
	if !strings.Contains(args, "-ss 00:00:05 -to 00:00:15 -c copy") {
		t.Fatalf("end-time trim args wrong: %q", args)
	}

	job.Parameters = queue.Parameters{Trim: &queue.TrimParams{StartTime: "00:00:05", Duration: 10}}
	args = argString(t, job, "/out/cut.mp4")
	if !strings.Contains(args, "-ss 00:00:05 -t 10 -c copy") {
		t.Fatalf("duration trim args wrong: %q", args)
	}
}

func TestBuildConcatenateWritesListFile(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "joined.mp4")
	job := &queue.Job{
		ID:        "j10",
		Operation: queue.OpConcatenate,
		InputPath: "/in/a.mp4",
		Parameters: queue.Parameters{Concatenate: &queue.ConcatenateParams{
			Inputs: []string{"/in/b.mp4", "/in/c.mp4"},
		}},
	}
	inv, err := BuildCommand(job, output)
	if err != nil {
		t.Fatalf("BuildCommand: %v", err)
	}

	args := strings.Join(inv.Args, " ")
	if !strings.Contains(args, "-f concat -safe 0 -i ") || !strings.Contains(args, "-c copy") {
		t.Fatalf("concat args wrong: %q", args)
	}

	data, err := os.ReadFile(inv.listFile)
	if err != nil {
		t.Fatalf("read list file: %v", err)
	}
	want := "file '/in/a.mp4'\nfile '/in/b.mp4'\nfile '/in/c.mp4'\n"
	if string(data) != want {
		t.Fatalf("list file = %q, want %q", data, want)
	}

	inv.Cleanup()
	if _, err := os.Stat(inv.listFile); !os.IsNotExist(err) {
		t.Fatal("cleanup left the list file behind")
	}
}

func TestBuildConcatenateRequiresTwoInputs(t *testing.T) {
	job := &queue.Job{
		ID:         "j11",
		Operation:  queue.OpConcatenate,
		InputPath:  "/in/a.mp4",
		Parameters: queue.Parameters{Concatenate: &queue.ConcatenateParams{}},
	}
	if _, err := BuildCommand(job, filepath.Join(t.TempDir(), "out.mp4")); err == nil {
		t.Fatal("expected error for single-input concatenate")
	}
}

func TestBuildRejectsMissingParameters(t *testing.T) {
	job := &queue.Job{ID: "j12", Operation: queue.OpTranscode, InputPath: "/in/a.mp4"}
	if _, err := BuildCommand(job, "/out/a.mp4"); err == nil {
		t.Fatal("expected error for missing parameters")
	}
}
