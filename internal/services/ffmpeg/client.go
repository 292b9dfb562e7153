package ffmpeg

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"sprocket/internal/services"
)

var commandContext = exec.CommandContext

// diagnosticTailLines bounds how much process output is kept for error
// reporting.
const diagnosticTailLines = 20

// ProgressFunc receives percent-complete updates in [0, 100).
type ProgressFunc func(percent float64)

// Client runs constructed ffmpeg invocations.
type Client interface {
	Run(ctx context.Context, inv *Invocation, totalSeconds float64, progress ProgressFunc) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command-line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Run executes the invocation, translating the progress feed into percent
// updates against totalSeconds. Cancelling the context signals the child's
// whole process group with SIGTERM; ffmpeg spawns filter threads that must
// go down with it. A context cancellation surfaces as ErrCancelled, any
// other failure as ErrExternalTool with the tail of the process output.
func (c *CLI) Run(ctx context.Context, inv *Invocation, totalSeconds float64, progress ProgressFunc) error {
	if inv == nil || len(inv.Args) == 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "run", "empty invocation", nil)
	}

	cmd := commandContext(ctx, c.binary, inv.Args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGTERM)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "run", "stdout pipe", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "run", "start ffmpeg", err)
	}

	var tail []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail = append(tail, line)
		if len(tail) > diagnosticTailLines {
			tail = tail[1:]
		}
		if seconds, ok := parseProgressLine(line); ok && progress != nil && totalSeconds > 0 {
			percent := seconds / totalSeconds * 100
			if percent < 0 {
				percent = 0
			}
			if percent >= 100 {
				percent = 99.9
			}
			progress(percent)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrCancelled, "ffmpeg", "run", "process terminated", ctx.Err())
		}
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "run", strings.Join(tail, "\n"), err)
	}
	if scanErr != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "run", "read process output", scanErr)
	}
	return nil
}

// parseProgressLine extracts elapsed output time in seconds from a progress
// feed line. ffmpeg reports microseconds under both the out_time_ms and
// out_time_us keys.
func parseProgressLine(line string) (float64, bool) {
	for _, key := range []string{"out_time_ms=", "out_time_us="} {
		if !strings.HasPrefix(line, key) {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(line, key))
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value < 0 {
			return 0, false
		}
		return float64(value) / 1_000_000, true
	}
	return 0, false
}

var _ Client = (*CLI)(nil)
