package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/jobs"
	"github.com/nadzzz/interviewdesk/internal/llm"
	"github.com/nadzzz/interviewdesk/internal/message"
	"github.com/nadzzz/interviewdesk/internal/postprocess"
)

type submission struct {
	path string
	mode jobs.Mode
}

type fakeJobs struct {
	mu        sync.Mutex
	submitted []submission
	jobs      map[string]jobs.Job
}

func (f *fakeJobs) Submit(inputRef string, mode jobs.Mode) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, submission{inputRef, mode})
	return "job-1", nil
}

func (f *fakeJobs) Get(id string) (jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return j, nil
}

type fakeLLM struct {
	err       error
	questions []postprocess.Category
}

func (f *fakeLLM) Format(ctx context.Context, transcript string) (postprocess.Result, error) {
	if f.err != nil {
		return postprocess.Result{}, f.err
	}
	return postprocess.Result{
		Text:         "访谈者：" + transcript,
		FinishReason: "stop",
		Models:       []llm.Model{"m1"},
		Chunks:       1,
	}, nil
}

func (f *fakeLLM) Match(ctx context.Context, transcript string, questions []postprocess.Category) (postprocess.Result, error) {
	if f.err != nil {
		return postprocess.Result{}, f.err
	}
	f.questions = questions
	return postprocess.Result{
		Text:         postprocess.RenderQuestions(questions),
		FinishReason: "length",
		Models:       []llm.Model{"m1", "m2"},
		Chunks:       2,
	}, nil
}

type fixture struct {
	jobs      *fakeJobs
	llm       *fakeLLM
	uploadDir string
	handler   http.Handler
}

func newFixture(t *testing.T, maxUploadMB int64) *fixture {
	t.Helper()
	f := &fixture{
		jobs:      &fakeJobs{jobs: map[string]jobs.Job{}},
		llm:       &fakeLLM{},
		uploadDir: filepath.Join(t.TempDir(), "uploads"),
	}
	tr := New(config.ServerConfig{Addr: "127.0.0.1:0", MaxUploadMB: maxUploadMB}, f.uploadDir, Services{
		Jobs:      f.jobs,
		Formatter: f.llm,
		Matcher:   f.llm,
		Questions: []postprocess.Category{{Title: "默认", Questions: []postprocess.Question{{ID: "1", Text: "默认问题"}}}},
		Health: func() message.HealthReport {
			return message.HealthReport{Status: "degraded", Jobs: map[string]int{"queued": 1}}
		},
	})
	f.handler = tr.Handler()
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, data []byte, mode string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if mode != "" {
		mw.WriteField("mode", mode)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, path string, v any) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestTranscribeQueuesJob(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.do(uploadRequest(t, "interview.M4A", []byte("audio"), ""))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[message.TranscribeResponse](t, rec); got.JobID != "job-1" {
		t.Errorf("job_id = %q", got.JobID)
	}

	if len(f.jobs.submitted) != 1 {
		t.Fatalf("submitted %d jobs", len(f.jobs.submitted))
	}
	sub := f.jobs.submitted[0]
	if sub.mode != jobs.ModeLocal {
		t.Errorf("mode = %q, want local by default", sub.mode)
	}
	if filepath.Dir(sub.path) != f.uploadDir || filepath.Ext(sub.path) != ".m4a" {
		t.Errorf("upload path = %q", sub.path)
	}
	data, err := os.ReadFile(sub.path)
	if err != nil || string(data) != "audio" {
		t.Errorf("stored upload = %q, %v", data, err)
	}
}

func TestTranscribeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mode     string
		want     int
	}{
		{"invalid mode", "a.wav", "cloud", http.StatusBadRequest},
		{"missing file", "", "api", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			rec := f.do(uploadRequest(t, tt.filename, []byte("x"), tt.mode))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
			if decode[message.ErrorResponse](t, rec).Error == "" {
				t.Error("empty error message")
			}
			if len(f.jobs.submitted) != 0 {
				t.Error("job submitted for rejected upload")
			}
			if entries, _ := os.ReadDir(f.uploadDir); len(entries) != 0 {
				t.Errorf("upload dir has %d files", len(entries))
			}
		})
	}
}

func TestTranscribeTooLarge(t *testing.T) {
	f := newFixture(t, 1)

	rec := f.do(uploadRequest(t, "big.wav", bytes.Repeat([]byte{1}, 2<<20), "local"))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413 (%s)", rec.Code, rec.Body)
	}
	if len(f.jobs.submitted) != 0 {
		t.Error("oversized upload was submitted")
	}
}

func TestGetJob(t *testing.T) {
	f := newFixture(t, 10)
	done := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.jobs.jobs["j1"] = jobs.Job{
		ID:           "j1",
		Status:       jobs.StatusFailed,
		Mode:         jobs.ModeAPI,
		ErrorMessage: "xfyun: recognition failed",
		LogTail:      []string{"upload ok", "status 4"},
		Progress:     40,
		FinishedAt:   &done,
	}

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	view := decode[message.JobView](t, rec)
	if view.JobID != "j1" || view.Status != jobs.StatusFailed || view.Error == "" || len(view.LogTail) != 2 {
		t.Errorf("view = %+v", view)
	}
	if view.Text != "" {
		t.Errorf("failed job carries text %q", view.Text)
	}

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", rec.Code)
	}
}

func TestFormat(t *testing.T) {
	f := newFixture(t, 10)

	rec := f.do(jsonRequest(t, "/api/llm/format", message.FormatRequest{Transcript: "你好"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	got := decode[message.LLMResponse](t, rec)
	if got.Text != "访谈者：你好" || got.Model != "m1" || got.FinishReason != "stop" {
		t.Errorf("response = %+v", got)
	}

	rec = f.do(jsonRequest(t, "/api/llm/format", message.FormatRequest{Transcript: "  "}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank transcript status = %d", rec.Code)
	}

	rec = f.do(httptest.NewRequest(http.MethodPost, "/api/llm/format", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed json status = %d", rec.Code)
	}
}

func TestMatchQuestions(t *testing.T) {
	tests := []struct {
		name      string
		questions json.RawMessage
		wantCode  int
		wantFirst string
	}{
		{"configured default", nil, http.StatusOK, "默认问题"},
		{"strings", json.RawMessage(`["家里几口人？","平时做什么？"]`), http.StatusOK, "家里几口人？"},
		{"categories", json.RawMessage(`[{"title":"A","questions":[{"id":"A1","text":"年龄？"}]}]`), http.StatusOK, "年龄？"},
		{"empty list", json.RawMessage(`[]`), http.StatusBadRequest, ""},
		{"not an array", json.RawMessage(`{"a":1}`), http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			rec := f.do(jsonRequest(t, "/api/llm/match", message.MatchRequest{Transcript: "转写", Questions: tt.questions}))
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if got := f.llm.questions[0].Questions[0].Text; got != tt.wantFirst {
				t.Errorf("first question = %q, want %q", got, tt.wantFirst)
			}
			resp := decode[message.LLMResponse](t, rec)
			if resp.Model != "m1,m2" || resp.Chunks != 2 || resp.FinishReason != "length" {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestLLMErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "exhausted",
			err: &llm.AllModelsExhaustedError{Attempts: []llm.Attempt{
				{Model: "a", Err: &llm.StatusError{Code: 429, Body: "rate limited"}, Recoverable: true},
			}},
			want: http.StatusBadGateway,
		},
		{"wrapped exhausted", errors.Join(errors.New("chunk 2/3"), &llm.AllModelsExhaustedError{}), http.StatusBadGateway},
		{"configuration", &llm.ConfigurationError{Message: "llm.api_key is not set"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10)
			f.llm.err = tt.err
			rec := f.do(jsonRequest(t, "/api/llm/format", message.FormatRequest{Transcript: "x"}))
			if rec.Code != tt.want {
				t.Errorf("format status = %d, want %d", rec.Code, tt.want)
			}
			rec = f.do(jsonRequest(t, "/api/llm/match", message.MatchRequest{Transcript: "x"}))
			if rec.Code != tt.want {
				t.Errorf("match status = %d, want %d", rec.Code, tt.want)
			}
			if decode[message.ErrorResponse](t, rec).Error == "" {
				t.Error("empty error body")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 10)
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[message.HealthReport](t, rec); got.Status != "degraded" || got.Jobs["queued"] != 1 {
		t.Errorf("report = %+v", got)
	}
}

func TestUploadExt(t *testing.T) {
	tests := map[string]string{
		"a.MP3":            ".mp3",
		"../../etc/passwd": "",
		"x.tar.gz":         ".gz",
		"weird.m$4a":       "",
		"noext":            "",
		"long.extension12": "",
	}
	for in, want := range tests {
		if got := uploadExt(in); got != want {
			t.Errorf("uploadExt(%q) = %q, want %q", in, got, want)
		}
	}
}

// echoClient returns the transcript portion of each prompt, slower for
// earlier chunks so completions arrive out of order.
type echoClient struct{}

func (echoClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	_, text, ok := strings.Cut(req.Prompt, "转写稿：\n")
	if !ok {
		return nil, errors.New("prompt without transcript")
	}
	if strings.Contains(text, "第00段") {
		time.Sleep(30 * time.Millisecond)
	}
	return &llm.Response{Text: text, FinishReason: "stop"}, nil
}

func TestFormatLongTranscriptKeepsOrder(t *testing.T) {
	var paras []string
	for i := range 12 {
		paras = append(paras, fmt.Sprintf("第%02d段：受访者讲述了自己的工作和家庭情况。", i))
	}
	transcript := strings.Join(paras, "\n\n")

	proc := postprocess.NewProcessor(
		llm.NewGateway(echoClient{}, llm.Options{}),
		llm.NewModelList([]string{"m1"}),
		postprocess.Options{MaxChars: 120, Concurrency: 4},
	)
	tr := New(config.ServerConfig{}, t.TempDir(), Services{Formatter: postprocess.NewFormatter(proc)})

	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, jsonRequest(t, "/api/llm/format", message.FormatRequest{Transcript: transcript}))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body)
	}
	resp := decode[message.LLMResponse](t, rec)
	if resp.Chunks < 2 {
		t.Fatalf("chunks = %d, want the transcript split", resp.Chunks)
	}

	last := -1
	for i := range 12 {
		pos := strings.Index(resp.Text, fmt.Sprintf("第%02d段", i))
		if pos < 0 || pos < last {
			t.Fatalf("paragraph %d out of order in %q", i, resp.Text)
		}
		last = pos
	}
}
