// Package process runs external binaries such as ffmpeg with context
// cancellation, a process-group kill and captured output.
package process

import (
	"io"
	"time"
)

// Command configures a subprocess to execute.
type Command struct {
	// Binary is the executable path or name resolved via PATH.
	Binary string
	Args   []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the parent environment.
	Env   []string
	Stdin io.Reader
	// Timeout bounds the run. Zero means only ctx applies.
	Timeout time.Duration
	// GracePeriod is how long to wait after SIGTERM before SIGKILL. Defaults to 5s.
	GracePeriod time.Duration
}
