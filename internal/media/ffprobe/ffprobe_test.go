package ffprobe

import (
	"context"
	"testing"

	"sprocket/internal/testsupport"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1920, Height: 1080},
			{CodecType: "audio", Channels: 2},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if w, h := result.Dimensions(); w != 1920 || h != 1080 {
		t.Fatalf("unexpected dimensions: %dx%d", w, h)
	}
	if !result.HasAudio() {
		t.Fatal("expected audio stream to be detected")
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Duration: "42.5"},
		},
	}
	if result.DurationSeconds() != 42.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "nope",
		},
	}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if w, h := result.Dimensions(); w != 0 || h != 0 {
		t.Fatalf("expected zero dimensions, got %dx%d", w, h)
	}
}

func TestInspectRunsBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	inspector := NewInspector(cfg.FFprobeBinary())

	input := cfg.Paths.InputDir + "/sample.mp4"
	testsupport.WriteFile(t, input, 64)

	result, err := inspector.Inspect(context.Background(), input)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.DurationSeconds() != 10 {
		t.Fatalf("duration = %v, want 10", result.DurationSeconds())
	}
	if w, h := result.Dimensions(); w != 1920 || h != 1080 {
		t.Fatalf("dimensions = %dx%d", w, h)
	}
}

func TestInspectRejectsEmptyPath(t *testing.T) {
	inspector := NewInspector("")
	if _, err := inspector.Inspect(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
