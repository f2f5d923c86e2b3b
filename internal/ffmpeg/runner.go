// Package ffmpeg runs the ffmpeg and ffprobe command line tools.
// Every invocation blocks until the process exits; a non-zero exit is
// reported as an *Error carrying the operation name, arguments and stderr.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner executes ffmpeg and ffprobe.
type Runner struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	logger      *slog.Logger
}

// NewRunner creates a new Runner.
// Empty paths default to "ffmpeg" and "ffprobe" (found via PATH).
func NewRunner(ffmpegPath, ffprobePath string, logger *slog.Logger) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
	}
}

// FFmpegPath returns the configured ffmpeg binary.
func (r *Runner) FFmpegPath() string {
	return r.ffmpegPath
}

// FFprobePath returns the configured ffprobe binary.
func (r *Runner) FFprobePath() string {
	return r.ffprobePath
}

// Run executes ffmpeg with the given arguments. The op name is used in
// logs and in the returned error.
func (r *Runner) Run(ctx context.Context, op string, args ...string) error {
	_, err := r.exec(ctx, op, r.ffmpegPath, args)
	return err
}

// Probe executes ffprobe with the given arguments and returns stdout.
func (r *Runner) Probe(ctx context.Context, op string, args ...string) ([]byte, error) {
	return r.exec(ctx, op, r.ffprobePath, args)
}

func (r *Runner) exec(ctx context.Context, op, bin string, args []string) ([]byte, error) {
	r.logger.Debug("running command",
		slog.String("op", op),
		slog.String("cmd", bin+" "+strings.Join(args, " ")),
	)

	// #nosec G204 - binary paths are set by the application, not user input
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", op, ctx.Err())
		}
		r.logger.Error("command failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
			slog.String("stderr", lastLines(stderr.String(), 20)),
		)
		return nil, &Error{
			Op:     op,
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

// Check verifies that both binaries can be executed.
func (r *Runner) Check(ctx context.Context) error {
	for _, bin := range []string{r.ffmpegPath, r.ffprobePath} {
		if _, err := r.exec(ctx, "version "+bin, bin, []string{"-version"}); err != nil {
			return fmt.Errorf("%s not available: %w", bin, err)
		}
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
