package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// Tool wraps stream-copy ffmpeg invocations. Every call runs under a hard
// deadline; on expiry the subprocess is force-killed by CommandContext and
// the error unwraps to context.DeadlineExceeded.
type Tool struct {
	binary  string
	timeout time.Duration
}

// Option configures the tool.
type Option func(*Tool)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(t *Tool) {
		if binary != "" {
			t.binary = binary
		}
	}
}

// WithTimeout overrides the per-invocation deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Tool) {
		if timeout > 0 {
			t.timeout = timeout
		}
	}
}

// New constructs a Tool using defaults.
func New(opts ...Option) *Tool {
	tool := &Tool{binary: "ffmpeg", timeout: 10 * time.Minute}
	for _, opt := range opts {
		opt(tool)
	}
	return tool
}

// ExtractSegment copies [start, start+duration) of input into output without
// re-encoding.
func (t *Tool) ExtractSegment(ctx context.Context, input, output string, start, duration float64) error {
	if input == "" || output == "" {
		return errors.New("ffmpeg extract: input and output required")
	}
	if duration <= 0 {
		return fmt.Errorf("ffmpeg extract: non-positive duration %v", duration)
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", formatSeconds(start),
		"-i", input,
		"-t", formatSeconds(duration),
		"-c", "copy",
		output,
	}
	return t.run(ctx, "extract", args)
}

// Concatenate joins the inputs in order using the concat demuxer with stream
// copy, preserving the original encoding.
func (t *Tool) Concatenate(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return errors.New("ffmpeg concat: no inputs")
	}
	if output == "" {
		return errors.New("ffmpeg concat: output required")
	}

	listFile, err := writeConcatList(inputs, output)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
	return t.run(ctx, "concat", args)
}

func (t *Tool) run(ctx context.Context, op string, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := commandContext(runCtx, t.binary, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg %s: killed after %s: %w", op, t.timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("ffmpeg %s: %w: %s", op, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// writeConcatList produces the concat demuxer's input list next to the output
// file. Single quotes in paths are escaped per the demuxer's quoting rules.
func writeConcatList(inputs []string, output string) (string, error) {
	var sb strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return "", fmt.Errorf("ffmpeg concat: resolve %s: %w", input, err)
		}
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		sb.WriteString("'\n")
	}

	listFile := output + ".concat.txt"
	if err := os.WriteFile(listFile, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("ffmpeg concat: write list: %w", err)
	}
	return listFile, nil
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'f', 3, 64)
}

// SetCommandRunnerForTests swaps the subprocess launcher and returns a restore
// function.
func SetCommandRunnerForTests(fn func(ctx context.Context, name string, args ...string) *exec.Cmd) func() {
	previous := commandContext
	commandContext = fn
	return func() { commandContext = previous }
}
