package ffmpeg

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func captureArgs(t *testing.T) *[][]string {
	t.Helper()
	var calls [][]string
	restore := SetCommandRunnerForTests(func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		return exec.CommandContext(ctx, "true")
	})
	t.Cleanup(restore)
	return &calls
}

func TestExtractSegmentBuildsStreamCopyCommand(t *testing.T) {
	calls := captureArgs(t)

	tool := New(WithBinary("ffmpeg-test"))
	if err := tool.ExtractSegment(context.Background(), "in.mp3", "out.mp3", 12.5, 30); err != nil {
		t.Fatalf("ExtractSegment: %v", err)
	}

	if len(*calls) != 1 {
		t.Fatalf("expected one invocation, got %d", len(*calls))
	}
	got := strings.Join((*calls)[0], " ")
	for _, want := range []string{"ffmpeg-test", "-ss 12.500", "-t 30.000", "-c copy", "out.mp3"} {
		if !strings.Contains(got, want) {
			t.Errorf("command %q missing %q", got, want)
		}
	}
}

func TestExtractSegmentRejectsBadInput(t *testing.T) {
	tool := New()
	if err := tool.ExtractSegment(context.Background(), "", "out.mp3", 0, 10); err == nil {
		t.Fatal("expected error for empty input")
	}
	if err := tool.ExtractSegment(context.Background(), "in.mp3", "out.mp3", 0, 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestConcatenateWritesListFile(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "joined.mp3")

	var listContents string
	restore := SetCommandRunnerForTests(func(ctx context.Context, name string, args ...string) *exec.Cmd {
		for i, arg := range args {
			if arg == "-i" && i+1 < len(args) {
				data, err := os.ReadFile(args[i+1])
				if err != nil {
					t.Fatalf("read concat list: %v", err)
				}
				listContents = string(data)
			}
		}
		return exec.CommandContext(ctx, "true")
	})
	defer restore()

	tool := New()
	inputs := []string{filepath.Join(dir, "a.mp3"), filepath.Join(dir, "b.mp3")}
	if err := tool.Concatenate(context.Background(), inputs, output); err != nil {
		t.Fatalf("Concatenate: %v", err)
	}

	if !strings.Contains(listContents, "a.mp3") || !strings.Contains(listContents, "b.mp3") {
		t.Errorf("list file missing inputs: %q", listContents)
	}
	if _, err := os.Stat(output + ".concat.txt"); !os.IsNotExist(err) {
		t.Error("concat list file not cleaned up")
	}
}

func TestConcatenateRejectsEmptyInputs(t *testing.T) {
	tool := New()
	if err := tool.Concatenate(context.Background(), nil, "out.mp3"); err == nil {
		t.Fatal("expected error for empty inputs")
	}
}

func TestRunTimesOut(t *testing.T) {
	restore := SetCommandRunnerForTests(func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sleep", "5")
	})
	defer restore()

	tool := New(WithTimeout(50 * time.Millisecond))
	err := tool.ExtractSegment(context.Background(), "in.mp3", "out.mp3", 0, 10)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "killed after") {
		t.Errorf("unexpected error: %v", err)
	}
}
