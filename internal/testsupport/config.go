package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"sprocket/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.InputDir = filepath.Join(base, "input")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Processing.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithWorkers overrides the worker count on the test config.
func WithWorkers(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Processing.Workers = count
	}
}

// WithStubbedBinaries writes executable ffmpeg/ffprobe stand-ins into a
// temp bin directory, points the config at them, and prepends the directory
// to PATH. The ffmpeg stub emits a short progress stream and creates its
// final argument as the output file; the ffprobe stub reports a fixed
// ten-second stream.
func WithStubbedBinaries() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}

		ffmpegScript := []byte(`#!/bin/sh
for arg in "$@"; do out="$arg"; done
echo "out_time_ms=2500000"
echo "out_time_ms=7500000"
echo "progress=end"
printf 'stub output' > "$out"
exit 0
`)
		ffprobeScript := []byte(`#!/bin/sh
cat <<'EOF'
{"format":{"duration":"10.000000"},"streams":[{"codec_type":"video","width":1920,"height":1080}]}
EOF
exit 0
`)

		writeStub := func(name string, body []byte) string {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, body, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			return target
		}
		b.cfg.Processing.FFmpegBinary = writeStub("ffmpeg", ffmpegScript)
		b.cfg.Processing.FFprobeBinary = writeStub("ffprobe", ffprobeScript)

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// WithFailingFFmpeg points the config at an ffmpeg stand-in that prints an
// encoder error and exits nonzero, for failure-path tests.
func WithFailingFFmpeg() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		target := filepath.Join(binDir, "ffmpeg-fail")
		script := []byte("#!/bin/sh\necho 'Unknown encoder' >&2\nexit 1\n")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write stub ffmpeg-fail: %v", err)
		}
		b.cfg.Processing.FFmpegBinary = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputDir)
}
