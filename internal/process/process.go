// Package process runs external executables with an explicit argument vector.
//
// Commands are never passed through a shell. Output is captured per stream and
// optionally delivered line by line while the process runs, which is how the
// transcription executor reports whisper.cpp progress.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// ExitNotStarted is reported when the executable could not be started at all.
const ExitNotStarted = 127

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string // working directory, empty for the current one

	// Timeout bounds the run; zero leaves it to the caller's context.
	Timeout time.Duration

	// OnLine receives each stdout/stderr line as it is produced.
	OnLine func(line string)
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result captures the outcome of a finished process.
type Result struct {
	Command  string        `json:"command" yaml:"command"`
	Args     []string      `json:"args" yaml:"args"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
	Stdout   string        `json:"stdout" yaml:"stdout"`
	Stderr   string        `json:"stderr" yaml:"stderr"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// String renders the invocation and its exit code for log tails.
func (r Result) String() string {
	return fmt.Sprintf("$ %s (exit %d, %s)", strings.TrimSpace(r.Command+" "+strings.Join(r.Args, " ")), r.ExitCode, r.Duration.Round(time.Millisecond))
}

// Output returns stderr followed by stdout, the order useful for diagnosis.
func (r Result) Output() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	default:
		return r.Stderr + "\n" + r.Stdout
	}
}

// ExitError reports a process that ran but did not succeed.
type ExitError struct {
	Result Result
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.Result.Command, e.Result.ExitCode, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner executes commands. Implementations must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct {
	// WaitDelay bounds how long output pipes are drained after a kill.
	WaitDelay time.Duration
}

// NewExecRunner returns a runner with production settings.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: 10 * time.Second}
}

// Run starts the command, waits for it and captures its output. A nonzero exit
// status, a timeout or a start failure is returned as *ExitError together with
// the partial Result.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	if c.Name == "" {
		return Result{}, errors.New("process: command name is required")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = r.WaitDelay

	var stdout, stderr bytes.Buffer
	lines := newLineSink(c.OnLine)
	cmd.Stdout = io.MultiWriter(&stdout, lines.writer())
	cmd.Stderr = io.MultiWriter(&stderr, lines.writer())

	start := time.Now()
	err := cmd.Run()
	lines.flush()

	res := Result{
		Command:  c.Name,
		Args:     append([]string(nil), c.Args...),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, syscall.ENOENT):
		res.ExitCode = ExitNotStarted
		res.Stderr += fmt.Sprintf("command not found: %s\n", c.Name)
	default:
		res.ExitCode = -1
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w (%v)", ctxErr, err)
	}
	return res, &ExitError{Result: res, Err: err}
}

// lineSink splits interleaved stdout/stderr writes into lines for OnLine.
type lineSink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	onLine func(string)
}

func newLineSink(onLine func(string)) *lineSink {
	return &lineSink{onLine: onLine}
}

func (s *lineSink) writer() io.Writer {
	if s.onLine == nil {
		return io.Discard
	}
	return s
}

func (s *lineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(p)
	for {
		idx := bytes.IndexAny(s.buf.Bytes(), "\r\n")
		if idx < 0 {
			break
		}
		line := string(s.buf.Next(idx + 1))
		s.emit(line)
	}
	return len(p), nil
}

func (s *lineSink) flush() {
	if s.onLine == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() > 0 {
		s.emit(s.buf.String())
		s.buf.Reset()
	}
}

func (s *lineSink) emit(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	s.onLine(line)
}

// ScanLines splits captured output into non-empty trimmed lines.
func ScanLines(out string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
