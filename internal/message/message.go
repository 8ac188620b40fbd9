// Package message defines the request and response bodies of the
// interviewdesk HTTP API.
package message

import (
	"encoding/json"
	"time"

	"github.com/nadzzz/interviewdesk/internal/jobs"
	"github.com/nadzzz/interviewdesk/internal/postprocess"
)

// TranscribeResponse is returned when an upload is accepted.
type TranscribeResponse struct {
	// JobID is the id to poll at GET /api/jobs/{id}.
	JobID string `json:"job_id" example:"3f1c2a4e-8f4b-4a47-9a8e-1d2f0b6f1a90"`
}

// JobView is the polling view of a transcription job.
type JobView struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status" enums:"queued,running,succeeded,failed"`
	Mode   jobs.Mode   `json:"mode" enums:"local,api"`

	// Message is a human-readable stage description.
	Message string `json:"message,omitempty"`

	// Progress is a coarse 0-100 estimate; informative only.
	Progress int `json:"progress"`

	// Text is the transcript, set once the job succeeded.
	Text string `json:"text,omitempty"`

	// Error and LogTail are set once the job failed.
	Error   string   `json:"error,omitempty"`
	LogTail []string `json:"log_tail,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJobView converts a job snapshot to its wire form.
func NewJobView(j jobs.Job) JobView {
	return JobView{
		JobID:      j.ID,
		Status:     j.Status,
		Mode:       j.Mode,
		Message:    j.Message,
		Progress:   j.Progress,
		Text:       j.ResultText,
		Error:      j.ErrorMessage,
		LogTail:    j.LogTail,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

// FormatRequest asks for a transcript to be rewritten as a dialogue.
type FormatRequest struct {
	Transcript string `json:"transcript"`
}

// MatchRequest asks for a transcript to be matched against questions.
//
// Questions may be a list of categories ({title, questions: [{id, text}]}),
// a flat list of {id, text} or a list of strings. When omitted the server's
// configured questions file is used.
type MatchRequest struct {
	Transcript string          `json:"transcript"`
	Questions  json.RawMessage `json:"questions,omitempty" swaggertype:"array,object"`
}

// LLMResponse is the result of a format or match call.
type LLMResponse struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason" example:"stop"`
	Model        string `json:"model" example:"deepseek/deepseek-chat:free"`
	Chunks       int    `json:"chunks"`
}

// NewLLMResponse converts a post-processing result to its wire form.
func NewLLMResponse(r postprocess.Result) LLMResponse {
	return LLMResponse{
		Text:         r.Text,
		FinishReason: r.FinishReason,
		Model:        r.Model(),
		Chunks:       r.Chunks,
	}
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthReport describes whether the runtime dependencies are in place.
type HealthReport struct {
	// Status is "ok" when local transcription and the LLM gateway are usable,
	// "degraded" otherwise.
	Status  string         `json:"status" example:"ok"`
	Version string         `json:"version"`
	FFmpeg  BinaryStatus   `json:"ffmpeg"`
	Whisper BinaryStatus   `json:"whisper"`
	Model   FileStatus     `json:"whisper_model"`
	Xfyun   XfyunStatus    `json:"xfyun"`
	LLM     LLMStatus      `json:"llm"`
	Jobs    map[string]int `json:"jobs"`
}

// BinaryStatus reports how an executable name resolved on PATH.
type BinaryStatus struct {
	Name  string `json:"name"`
	Path  string `json:"path,omitempty"`
	Found bool   `json:"found"`
}

// FileStatus reports whether a configured file exists.
type FileStatus struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// XfyunStatus reports the remote transcription credentials.
type XfyunStatus struct {
	Configured bool   `json:"configured"`
	Scheme     string `json:"scheme,omitempty" enums:"new,legacy"`
	Error      string `json:"error,omitempty"`
}

// LLMStatus reports the chat gateway configuration.
type LLMStatus struct {
	APIKeySet bool     `json:"api_key_set"`
	Models    []string `json:"models"`
	Questions int      `json:"questions"`
}
