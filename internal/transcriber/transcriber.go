// Package transcriber defines the interface for speech-to-text backends.
//
// A transcriber takes an uploaded audio file and produces plain text.
// interviewdesk ships with two backends: Local (ffmpeg + whisper.cpp
// subprocesses) and Xfyun (the iFlytek long-form recognition API).
package transcriber

import (
	"context"
)

// Request describes one transcription run.
type Request struct {
	// JobID names the run in logs and in the job directory.
	JobID string

	// InputPath is the uploaded audio file. It is never modified.
	InputPath string

	// WorkDir is a scratch directory owned by this run.
	WorkDir string

	// Progress receives coarse progress (0-100) and a stage message.
	Progress func(percent int, message string)

	// Log receives diagnostic lines for the job's log tail.
	Log func(line string)
}

// Result is a finished transcription.
type Result struct {
	Text string
}

// Transcriber is the interface for audio transcription backends.
type Transcriber interface {
	// Name returns the backend identifier (e.g., "local", "xfyun").
	Name() string

	// Transcribe converts the request's audio file to text.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// ReportProgress forwards progress when a callback is configured.
func (r Request) ReportProgress(percent int, message string) {
	if r.Progress != nil {
		r.Progress(percent, message)
	}
}

// ReportLog forwards a diagnostic line when a callback is configured.
func (r Request) ReportLog(line string) {
	if r.Log != nil {
		r.Log(line)
	}
}
