package health

import (
	"os"
	"os/exec"

	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/jobs"
	"github.com/nadzzz/interviewdesk/internal/message"
	"github.com/nadzzz/interviewdesk/internal/transcriber/xfyun"
)

// SchemeSource exposes the signing scheme chosen by the remote adapter.
type SchemeSource interface {
	Scheme() (xfyun.Scheme, error)
}

// Inputs is everything the environment report looks at.
type Inputs struct {
	Version   string
	Whisper   config.WhisperConfig
	Xfyun     SchemeSource // nil when remote transcription is not wired
	APIKeySet bool
	Models    []string
	Questions int
	Jobs      func() map[jobs.Status]int
}

// Reporter builds the environment report. Every call re-checks the
// filesystem and PATH, so installing a binary is picked up without a restart.
type Reporter struct {
	in       Inputs
	lookPath func(string) (string, error)
}

// NewReporter creates a reporter over in.
func NewReporter(in Inputs) *Reporter {
	return &Reporter{in: in, lookPath: exec.LookPath}
}

// Report checks binaries, the whisper model and the gateway settings.
func (r *Reporter) Report() message.HealthReport {
	rep := message.HealthReport{
		Version: r.in.Version,
		FFmpeg:  r.binary(r.in.Whisper.FFmpegBin, "ffmpeg"),
		Whisper: r.binary(r.in.Whisper.Bin, "whisper-cli"),
		Model:   message.FileStatus{Path: r.in.Whisper.Model},
		LLM: message.LLMStatus{
			APIKeySet: r.in.APIKeySet,
			Models:    append([]string{}, r.in.Models...),
			Questions: r.in.Questions,
		},
		Jobs: map[string]int{},
	}

	if info, err := os.Stat(r.in.Whisper.Model); err == nil && !info.IsDir() {
		rep.Model.Exists = true
	}

	if r.in.Xfyun != nil {
		scheme, err := r.in.Xfyun.Scheme()
		if err != nil {
			rep.Xfyun.Error = err.Error()
		} else {
			rep.Xfyun.Configured = true
			rep.Xfyun.Scheme = scheme.Name()
		}
	}

	if r.in.Jobs != nil {
		for status, n := range r.in.Jobs() {
			rep.Jobs[string(status)] = n
		}
	}

	rep.Status = "ok"
	if !rep.FFmpeg.Found || !rep.Whisper.Found || !rep.Model.Exists {
		rep.Status = "degraded"
	}
	return rep
}

func (r *Reporter) binary(name, fallback string) message.BinaryStatus {
	if name == "" {
		name = fallback
	}
	st := message.BinaryStatus{Name: name}
	if path, err := r.lookPath(name); err == nil {
		st.Path = path
		st.Found = true
	}
	return st
}
