package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/jobs"
	"github.com/nadzzz/interviewdesk/internal/transcriber"
	"github.com/nadzzz/interviewdesk/internal/transcriber/xfyun"
)

func TestProbes(t *testing.T) {
	s := New(0)
	h := s.Handler()

	get := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	if code := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz = %d before ready", code)
	}
	if code := get("/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("/readyz = %d before ready, want 503", code)
	}
	s.SetReady(true)
	if code := get("/readyz"); code != http.StatusOK {
		t.Errorf("/readyz = %d after ready", code)
	}
}

type fixedScheme struct {
	scheme xfyun.Scheme
	err    error
}

func (f fixedScheme) Scheme() (xfyun.Scheme, error) { return f.scheme, f.err }

func TestReport(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "ggml-small.bin")
	os.WriteFile(model, []byte("ggml"), 0o644)

	tests := []struct {
		name       string
		model      string
		found      map[string]bool
		xfyun      SchemeSource
		wantStatus string
		wantScheme string
	}{
		{
			name:       "all present",
			model:      model,
			found:      map[string]bool{"ffmpeg": true, "whisper-cli": true},
			xfyun:      fixedScheme{scheme: xfyun.NewScheme{Key: "k", Secret: "s"}},
			wantStatus: "ok",
			wantScheme: "new",
		},
		{
			name:       "model missing",
			model:      filepath.Join(dir, "missing.bin"),
			found:      map[string]bool{"ffmpeg": true, "whisper-cli": true},
			xfyun:      fixedScheme{scheme: xfyun.LegacyScheme{Secret: "s"}},
			wantStatus: "degraded",
			wantScheme: "legacy",
		},
		{
			name:       "whisper not on path",
			model:      model,
			found:      map[string]bool{"ffmpeg": true},
			xfyun:      fixedScheme{err: &transcriber.ConfigurationError{Backend: "xfyun", Message: "xfyun.app_id is not set"}},
			wantStatus: "degraded",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReporter(Inputs{
				Version:   "test",
				Whisper:   config.WhisperConfig{Model: tt.model},
				Xfyun:     tt.xfyun,
				APIKeySet: true,
				Models:    []string{"a", "b"},
				Jobs:      func() map[jobs.Status]int { return map[jobs.Status]int{jobs.StatusQueued: 2} },
			})
			r.lookPath = func(name string) (string, error) {
				if tt.found[name] {
					return "/usr/bin/" + name, nil
				}
				return "", errors.New("not found")
			}

			rep := r.Report()
			if rep.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q (%+v)", rep.Status, tt.wantStatus, rep)
			}
			if rep.Xfyun.Scheme != tt.wantScheme || rep.Xfyun.Configured != (tt.wantScheme != "") {
				t.Errorf("xfyun = %+v", rep.Xfyun)
			}
			if tt.wantScheme == "" && rep.Xfyun.Error == "" {
				t.Error("missing xfyun configuration error")
			}
			if rep.Jobs["queued"] != 2 || len(rep.LLM.Models) != 2 {
				t.Errorf("report = %+v", rep)
			}
			if rep.FFmpeg.Name != "ffmpeg" || !rep.FFmpeg.Found {
				t.Errorf("ffmpeg = %+v", rep.FFmpeg)
			}
		})
	}
}
