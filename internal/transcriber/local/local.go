// Package local implements the Transcriber interface with local subprocesses.
//
// Audio is normalized with ffmpeg and then recognized by the whisper.cpp CLI
// (whisper-cli) using a ggml model file on disk. Runs are not retried: the
// engine is deterministic, so a failure points at the binary, the model or
// the input.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/nadzzz/interviewdesk/internal/audio"
	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/process"
	"github.com/nadzzz/interviewdesk/internal/transcriber"
)

const name = "local"

var (
	progressRe = regexp.MustCompile(`(?i)progress\s*=\s*(\d+)%`)
	percentRe  = regexp.MustCompile(`(\d{1,3})%`)
	segmentRe  = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}[.,]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[.,]\d{3}\]\s*(.*)$`)
)

// Transcriber runs ffmpeg and whisper.cpp for each request.
type Transcriber struct {
	whisperBin string
	model      string
	language   string
	threads    int
	cfg        config.WhisperConfig
	runner     process.Runner
	normalizer *audio.Normalizer
}

// New creates a local transcriber from config.
func New(cfg config.WhisperConfig, runner process.Runner) *Transcriber {
	bin := cfg.Bin
	if bin == "" {
		bin = "whisper-cli"
	}
	threads := cfg.Threads
	if threads < 1 {
		threads = 4
	}
	return &Transcriber{
		whisperBin: bin,
		model:      cfg.Model,
		language:   strings.TrimSpace(cfg.Language),
		threads:    threads,
		cfg:        cfg,
		runner:     runner,
		normalizer: audio.NewNormalizer(cfg.FFmpegBin, runner, cfg.Timeout),
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return name }

// CheckModel reports whether the configured model file is usable.
func (t *Transcriber) CheckModel() error {
	if strings.TrimSpace(t.model) == "" {
		return &transcriber.ConfigurationError{Backend: name, Message: "whisper.model is not set"}
	}
	info, err := os.Stat(t.model)
	if err != nil {
		return &transcriber.ConfigurationError{
			Backend: name,
			Message: fmt.Sprintf("model file not found: %s (download a ggml model into models/)", t.model),
		}
	}
	if info.IsDir() {
		return &transcriber.ConfigurationError{Backend: name, Message: fmt.Sprintf("model path is a directory: %s", t.model)}
	}
	return nil
}

// Transcribe normalizes the input audio and runs whisper.cpp over it.
func (t *Transcriber) Transcribe(ctx context.Context, req transcriber.Request) (*transcriber.Result, error) {
	if err := t.CheckModel(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	logger := slog.With("job_id", req.JobID, "backend", name)

	req.ReportProgress(0, "converting audio (ffmpeg)")
	wavPath := filepath.Join(req.WorkDir, "audio.wav")
	info, convRes, err := t.normalizer.Normalize(ctx, req.InputPath, wavPath)
	if convRes.Command != "" {
		req.ReportLog(convRes.String())
	}
	if err != nil {
		var convErr *transcriber.ConversionError
		if errors.As(err, &convErr) {
			for _, line := range tailLines(convErr.Output, 20) {
				req.ReportLog(line)
			}
		}
		return nil, err
	}
	logger.Info("audio normalized", "duration", info.Duration)

	req.ReportProgress(0, "transcribing (whisper.cpp)")
	prefix := filepath.Join(req.WorkDir, "transcript")
	tracker := &progressTracker{report: req.ReportProgress}
	res, runErr := t.runner.Run(ctx, process.Command{
		Name:    t.whisperBin,
		Args:    BuildWhisperArgs(t.threads, t.model, t.language, wavPath, prefix),
		Timeout: t.cfg.Timeout,
		OnLine: func(line string) {
			req.ReportLog(line)
			tracker.observe(line)
		},
	})
	if runErr != nil {
		return nil, &transcriber.RecognitionError{
			Backend: name,
			Message: "whisper.cpp exited with an error (check whisper.bin and whisper.model)",
			Output:  res.Output(),
			Err:     runErr,
		}
	}

	text, err := readTranscript(prefix+".txt", res.Stdout)
	if err != nil {
		return nil, &transcriber.RecognitionError{Backend: name, Message: err.Error(), Output: res.Output()}
	}

	req.ReportProgress(100, "done")
	logger.Info("local transcription complete", "text_length", len(text), "took", res.Duration)
	return &transcriber.Result{Text: text}, nil
}

// BuildWhisperArgs builds whisper.cpp args for txt transcript export.
func BuildWhisperArgs(threads int, modelPath, language, audioPath, outPrefix string) []string {
	args := []string{
		"-t", strconv.Itoa(threads),
		"-m", modelPath,
	}
	if language != "" {
		args = append(args, "-l", language)
	}
	return append(args,
		"-f", audioPath,
		"-pp",
		"-otxt",
		"-of", outPrefix,
	)
}

// readTranscript prefers the exported .txt file and falls back to the
// timestamped segments whisper.cpp prints on stdout.
func readTranscript(txtPath, stdout string) (string, error) {
	data, err := os.ReadFile(txtPath)
	if err == nil {
		return strings.TrimSpace(string(data)), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("reading transcript file: %w", err)
	}

	var segments []string
	for _, line := range process.ScanLines(stdout) {
		if m := segmentRe.FindStringSubmatch(line); m != nil {
			if s := strings.TrimSpace(m[1]); s != "" {
				segments = append(segments, s)
			}
		}
	}
	if len(segments) == 0 {
		return "", errors.New("whisper.cpp produced no transcript file and no parsable output")
	}
	return strings.Join(segments, "\n"), nil
}

// progressTracker extracts a monotonic percentage from whisper output lines.
type progressTracker struct {
	report func(int, string)
	last   int
	seen   bool
}

func (p *progressTracker) observe(line string) {
	pct, ok := parseProgress(line)
	if !ok {
		return
	}
	if p.seen && pct <= p.last {
		return
	}
	p.last, p.seen = pct, true
	p.report(pct, fmt.Sprintf("transcribing %d%%", pct))
}

// parseProgress understands "progress = 42%" and, failing that, any "NN%".
func parseProgress(line string) (int, bool) {
	if m := progressRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.Atoi(m[1])
		return v, err == nil && v <= 100
	}
	if m := percentRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.Atoi(m[1])
		return v, err == nil && v <= 100
	}
	return 0, false
}

func tailLines(out string, n int) []string {
	lines := process.ScanLines(out)
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
