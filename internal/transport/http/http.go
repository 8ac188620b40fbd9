// Package http implements the REST API of interviewdesk.
//
// Uploads become transcription jobs that clients poll by id. The two LLM
// endpoints run synchronously and hold the request open until every chunk
// of the transcript has been answered.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/jobs"
	"github.com/nadzzz/interviewdesk/internal/llm"
	"github.com/nadzzz/interviewdesk/internal/message"
	"github.com/nadzzz/interviewdesk/internal/postprocess"
)

// memoryLimit is the part of a multipart upload kept in memory before
// spilling to a temp file.
const memoryLimit = 32 << 20

// JobService accepts and looks up transcription jobs.
type JobService interface {
	Submit(inputRef string, mode jobs.Mode) (string, error)
	Get(id string) (jobs.Job, error)
}

// Formatter rewrites a transcript as a dialogue.
type Formatter interface {
	Format(ctx context.Context, transcript string) (postprocess.Result, error)
}

// Matcher answers a question list from a transcript.
type Matcher interface {
	Match(ctx context.Context, transcript string, questions []postprocess.Category) (postprocess.Result, error)
}

// Services are the collaborators behind the API routes.
type Services struct {
	Jobs      JobService
	Formatter Formatter
	Matcher   Matcher
	Questions []postprocess.Category // used when a match request has none
	Health    func() message.HealthReport
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	addr      string
	maxUpload int64
	uploadDir string
	svc       Services
	server    *http.Server
}

// New creates the API server. Uploaded files are written to uploadDir.
func New(cfg config.ServerConfig, uploadDir string, svc Services) *Transport {
	return &Transport{
		addr:      cfg.Addr,
		maxUpload: cfg.MaxUploadMB << 20,
		uploadDir: uploadDir,
		svc:       svc,
	}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler returns the API routes.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/transcribe", t.handleTranscribe)
	mux.HandleFunc("GET /api/jobs/{id}", t.handleJob)
	mux.HandleFunc("POST /api/llm/format", t.handleFormat)
	mux.HandleFunc("POST /api/llm/match", t.handleMatch)
	mux.HandleFunc("GET /api/health", t.handleHealth)

	// Swagger UI serves the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// Listen starts the HTTP server and blocks until ctx is cancelled.
func (t *Transport) Listen(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "addr", t.addr)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		t.Close()
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

// handleTranscribe accepts an audio upload and queues a transcription job.
//
// @Summary     Queue a transcription job
// @Description Stores the uploaded recording and starts transcribing it in the background.
// @Description Poll GET /api/jobs/{id} for the result.
// @Tags        transcription
// @Accept      multipart/form-data
// @Produce     json
// @Param       file  formData  file    true   "Audio or video recording"
// @Param       mode  formData  string  false  "local (whisper.cpp) or api (iFlytek)"  Enums(local, api)  default(local)
// @Success     202  {object}  message.TranscribeResponse
// @Failure     400  {object}  message.ErrorResponse  "Missing file or invalid mode"
// @Failure     413  {object}  message.ErrorResponse  "Upload exceeds server.max_upload_mb"
// @Failure     500  {object}  message.ErrorResponse
// @Router      /api/transcribe [post]
func (t *Transport) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if t.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, t.maxUpload)
	}
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB", tooLarge.Limit>>20))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode, err := jobs.ParseMode(r.FormValue("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	path, err := t.saveUpload(file, header.Filename)
	if err != nil {
		slog.Error("saving upload failed", "filename", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "saving upload failed")
		return
	}

	id, err := t.svc.Jobs.Submit(path, mode)
	if err != nil {
		os.Remove(path)
		writeJobError(w, err)
		return
	}

	slog.Info("transcription job queued", "job_id", id, "mode", mode, "filename", header.Filename, "bytes", header.Size)
	writeJSON(w, http.StatusAccepted, message.TranscribeResponse{JobID: id})
}

// saveUpload copies src to a uniquely named file in the upload directory.
func (t *Transport) saveUpload(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(t.uploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(t.uploadDir, uuid.NewString()+uploadExt(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// uploadExt keeps a short alphanumeric extension of the client's filename.
func uploadExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// handleJob returns the current state of a transcription job.
//
// @Summary     Get a transcription job
// @Tags        transcription
// @Produce     json
// @Param       id   path      string  true  "Job id"
// @Success     200  {object}  message.JobView
// @Failure     404  {object}  message.ErrorResponse
// @Router      /api/jobs/{id} [get]
func (t *Transport) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := t.svc.Jobs.Get(r.PathValue("id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, message.NewJobView(job))
}

// handleFormat rewrites a transcript as an interviewer/respondent dialogue.
//
// @Summary     Format a transcript as a dialogue
// @Description Long transcripts are split into chunks, each sent through the model fallback list.
// @Tags        llm
// @Accept      json
// @Produce     json
// @Param       request  body      message.FormatRequest  true  "Transcript"
// @Success     200  {object}  message.LLMResponse
// @Failure     400  {object}  message.ErrorResponse  "Empty transcript"
// @Failure     502  {object}  message.ErrorResponse  "Every configured model failed"
// @Failure     500  {object}  message.ErrorResponse
// @Router      /api/llm/format [post]
func (t *Transport) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req message.FormatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}

	res, err := t.svc.Formatter.Format(r.Context(), req.Transcript)
	if err != nil {
		writeLLMError(w, "format", err)
		return
	}
	writeJSON(w, http.StatusOK, message.NewLLMResponse(res))
}

// handleMatch answers a question list from a transcript.
//
// @Summary     Match a transcript against interview questions
// @Description Questions unanswered in the transcript are marked as such. When the request carries
// @Description no questions the server's configured questions file is used.
// @Tags        llm
// @Accept      json
// @Produce     json
// @Param       request  body      message.MatchRequest  true  "Transcript and optional questions"
// @Success     200  {object}  message.LLMResponse
// @Failure     400  {object}  message.ErrorResponse  "Empty transcript or no questions"
// @Failure     502  {object}  message.ErrorResponse  "Every configured model failed"
// @Failure     500  {object}  message.ErrorResponse
// @Router      /api/llm/match [post]
func (t *Transport) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req message.MatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "transcript is required")
		return
	}

	questions := t.svc.Questions
	if len(req.Questions) > 0 && string(req.Questions) != "null" {
		parsed, err := postprocess.ParseQuestions(req.Questions)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		questions = parsed
	}
	if lo.SumBy(questions, func(c postprocess.Category) int { return len(c.Questions) }) == 0 {
		writeError(w, http.StatusBadRequest, "no questions given and none configured")
		return
	}

	res, err := t.svc.Matcher.Match(r.Context(), req.Transcript, questions)
	if err != nil {
		writeLLMError(w, "match", err)
		return
	}
	writeJSON(w, http.StatusOK, message.NewLLMResponse(res))
}

// handleHealth reports the runtime environment.
//
// @Summary     Environment report
// @Description Resolves ffmpeg and whisper-cli on PATH, checks the whisper model file and
// @Description summarises the LLM and iFlytek settings.
// @Tags        health
// @Produce     json
// @Success     200  {object}  message.HealthReport
// @Router      /api/health [get]
func (t *Transport) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, t.svc.Health())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 16<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeLLMError(w http.ResponseWriter, op string, err error) {
	var exhausted *llm.AllModelsExhaustedError
	if errors.As(err, &exhausted) {
		slog.Warn("llm request failed on every model", "op", op, "attempts", len(exhausted.Attempts))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	slog.Error("llm request failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, message.ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
