package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sprocket/internal/services"
)

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestParseProgressLine(t *testing.T) {
	cases := []struct {
		line    string
		seconds float64
		ok      bool
	}{
		{"out_time_ms=2500000", 2.5, true},
		{"out_time_us=7500000", 7.5, true},
		{"out_time_ms=N/A", 0, false},
		{"frame=100", 0, false},
		{"out_time_ms=-5", 0, false},
	}
	for _, tc := range cases {
		seconds, ok := parseProgressLine(tc.line)
		if ok != tc.ok || seconds != tc.seconds {
			t.Fatalf("parseProgressLine(%q) = (%v, %v), want (%v, %v)", tc.line, seconds, ok, tc.seconds, tc.ok)
		}
	}
}

func TestRunStreamsProgress(t *testing.T) {
	script := writeScript(t, "ffmpeg", `#!/bin/sh
echo "out_time_ms=2500000"
echo "out_time_ms=7500000"
echo "progress=end"
exit 0
`)
	cli := NewCLI(WithBinary(script))

	var updates []float64
	err := cli.Run(context.Background(), &Invocation{Args: []string{"-i", "in"}}, 10, func(percent float64) {
		updates = append(updates, percent)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(updates) != 2 || updates[0] != 25 || updates[1] != 75 {
		t.Fatalf("updates = %v, want [25 75]", updates)
	}
}

func TestRunClampsProgressBelowHundred(t *testing.T) {
	script := writeScript(t, "ffmpeg", `#!/bin/sh
echo "out_time_ms=20000000"
exit 0
`)
	cli := NewCLI(WithBinary(script))

	var last float64
	err := cli.Run(context.Background(), &Invocation{Args: []string{"-i", "in"}}, 10, func(percent float64) {
		last = percent
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if last != 99.9 {
		t.Fatalf("overshoot progress = %v, want 99.9", last)
	}
}

func TestRunFailureCapturesOutput(t *testing.T) {
	script := writeScript(t, "ffmpeg", `#!/bin/sh
echo "Unknown encoder 'libnope'" >&2
exit 1
`)
	cli := NewCLI(WithBinary(script))

	err := cli.Run(context.Background(), &Invocation{Args: []string{"-i", "in"}}, 10, nil)
	if err == nil {
		t.Fatal("expected error from nonzero exit")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("error = %v, want ErrExternalTool", err)
	}
	if details := services.Details(err); details.Message == "" {
		t.Fatal("diagnostic output lost")
	}
}

func TestRunCancellation(t *testing.T) {
	script := writeScript(t, "ffmpeg", `#!/bin/sh
sleep 30
`)
	cli := NewCLI(WithBinary(script))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := cli.Run(ctx, &Invocation{Args: []string{"-i", "in"}}, 10, nil)
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("cancellation took %v", elapsed)
	}
}

func TestRunRejectsEmptyInvocation(t *testing.T) {
	cli := NewCLI()
	if err := cli.Run(context.Background(), nil, 10, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}
