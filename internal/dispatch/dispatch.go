// Package dispatch routes transcription jobs to the backend selected by
// their mode.
//
// The dispatcher is the jobs.Runner of the service: the job manager hands it
// a claimed job and it runs the matching transcriber inside the job's own
// working directory, relaying progress and diagnostic lines back to the job.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nadzzz/interviewdesk/internal/jobs"
	"github.com/nadzzz/interviewdesk/internal/transcriber"
)

// Dispatcher is the mode -> transcriber routing table.
type Dispatcher struct {
	backends map[jobs.Mode]transcriber.Transcriber
	workDir  string
}

// New creates a Dispatcher running jobs under workDir/<job id>.
func New(workDir string, backends map[jobs.Mode]transcriber.Transcriber) *Dispatcher {
	bm := make(map[jobs.Mode]transcriber.Transcriber, len(backends))
	for mode, t := range backends {
		if t != nil {
			bm[mode] = t
		}
	}
	return &Dispatcher{backends: bm, workDir: workDir}
}

// Backend returns the transcriber registered for mode.
func (d *Dispatcher) Backend(mode jobs.Mode) (transcriber.Transcriber, bool) {
	t, ok := d.backends[mode]
	return t, ok
}

// Run transcribes a single job. It implements jobs.Runner.
func (d *Dispatcher) Run(ctx context.Context, job jobs.Job, hooks jobs.Hooks) (string, error) {
	start := time.Now()
	logger := slog.With("job_id", job.ID, "mode", job.Mode)

	backend, ok := d.backends[job.Mode]
	if !ok {
		return "", &transcriber.ConfigurationError{
			Backend: string(job.Mode),
			Message: "no transcriber configured for this mode",
		}
	}
	logger.Info("dispatch started", "backend", backend.Name(), "input", job.InputRef)

	res, err := backend.Transcribe(ctx, transcriber.Request{
		JobID:     job.ID,
		InputPath: job.InputRef,
		WorkDir:   filepath.Join(d.workDir, job.ID),
		Progress:  hooks.Progress,
		Log:       hooks.Log,
	})
	if err != nil {
		if hooks.Log != nil {
			hooks.Log(fmt.Sprintf("%s failed: %v", backend.Name(), err))
		}
		return "", err
	}

	logger.Info("dispatch complete", "backend", backend.Name(), "duration", time.Since(start), "text_length", len(res.Text))
	return res.Text, nil
}
