// Package shell runs shell commands as batch jobs.
package shell

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sharpjs/PSConcurrent/pkg/batch"
)

// Result is emitted once per finished command.
type Result struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration_ns"`
}

// String implements fmt.Stringer.
func (r Result) String() string {
	return fmt.Sprintf("%q exited with code %d after %v", r.Command, r.ExitCode, r.Duration.Round(time.Millisecond))
}

// ExitError is the job error of a command that exited with a non-zero code.
type ExitError struct {
	Command string
	Code    int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.Code)
}

// Runner creates jobs that run commands through a shell.
type Runner struct {
	// Shell is the shell executable. Defaults to sh, or cmd on Windows.
	Shell string

	// WaitDelay bounds how long output is read after a canceled command is
	// killed. Default: 1 second
	WaitDelay time.Duration
}

// Job returns a job that runs command. Standard output lines are written to
// the worker's console, standard error lines as error lines.
func (r Runner) Job(command string) batch.Job {
	return batch.JobFunc(func(w *batch.Worker) error {
		return r.run(w, command)
	})
}

func (r Runner) shell() (string, string) {
	name := r.Shell
	if name == "" {
		if runtime.GOOS == "windows" {
			name = "cmd"
		} else {
			name = "sh"
		}
	}

	base := strings.ToLower(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	switch base {
	case "cmd":
		return name, "/C"
	case "powershell", "pwsh":
		return name, "-Command"
	default:
		return name, "-c"
	}
}

func (r Runner) run(w *batch.Worker, command string) error {
	ctx := w.Context()
	shell, flag := r.shell()

	cmd := exec.CommandContext(ctx, shell, flag, command)
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = time.Second
	}

	// Wait owns the copying, so WaitDelay bounds it even when a killed shell
	// leaves children holding the output open.
	ui := w.UI()
	stdout := &lineWriter{write: ui.WriteLine}
	stderr := &lineWriter{write: ui.WriteErrorLine}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return err
	}

	err := cmd.Wait()
	stdout.Flush()
	stderr.Flush()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	result := Result{Command: command, Duration: time.Since(start)}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return err
	}

	if err := w.Emit(result); err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &ExitError{Command: command, Code: result.ExitCode}
	}
	return nil
}

// lineWriter passes each complete line to write, without its terminator.
// It is used by a single copying goroutine.
type lineWriter struct {
	write func(string)
	buf   []byte
}

func (lw *lineWriter) Write(p []byte) (int, error) {
	lw.buf = append(lw.buf, p...)
	for {
		i := bytes.IndexByte(lw.buf, '\n')
		if i < 0 {
			break
		}
		lw.write(strings.TrimRight(string(lw.buf[:i]), "\r"))
		lw.buf = lw.buf[i+1:]
	}
	return len(p), nil
}

// Flush writes a final unterminated line, if any.
func (lw *lineWriter) Flush() {
	if len(lw.buf) > 0 {
		lw.write(strings.TrimRight(string(lw.buf), "\r"))
		lw.buf = nil
	}
}
