package process_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/captiongen/process"
)

func TestRunEcho(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary: "echo",
		Args:   []string{"hello", "world"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out := strings.TrimSpace(string(result.Stdout)); out != "hello world" {
		t.Fatalf("expected 'hello world', got %q", out)
	}
}

func TestRunStdin(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary: "cat",
		Stdin:  strings.NewReader("from stdin"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Stdout) != "from stdin" {
		t.Fatalf("expected 'from stdin', got %q", result.Stdout)
	}
}

func TestRunExitCodeAndStderrTail(t *testing.T) {
	result, err := process.Run(context.Background(), process.Command{
		Binary: "sh",
		Args:   []string{"-c", "echo one >&2; echo two >&2; echo three >&2; exit 42"},
	})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if result.ExitCode != 42 {
		t.Fatalf("expected exit code 42, got %d", result.ExitCode)
	}
	if tail := result.StderrTail(2); tail != "two\nthree" {
		t.Errorf("StderrTail = %q", tail)
	}
}

func TestRunTimeout(t *testing.T) {
	start := time.Now()
	_, err := process.Run(context.Background(), process.Command{
		Binary:      "sleep",
		Args:        []string{"10"},
		Timeout:     100 * time.Millisecond,
		GracePeriod: 100 * time.Millisecond,
	})
	if err == nil || !strings.Contains(err.Error(), "killed by context") {
		t.Fatalf("expected context kill, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not stop the process")
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := process.Run(context.Background(), process.Command{Binary: "definitely-not-a-binary-xyz"})
	if !errors.Is(err, process.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := process.LookPath("definitely-not-a-binary-xyz"); !errors.Is(err, process.ErrNotFound) {
		t.Fatalf("LookPath: expected ErrNotFound, got %v", err)
	}
}

func TestRunRequiresBinary(t *testing.T) {
	if _, err := process.Run(context.Background(), process.Command{}); err == nil {
		t.Fatal("expected error for empty binary")
	}
}
