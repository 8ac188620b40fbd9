package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.LLMConfig{BaseURL: srv.URL + "/api/v1/", APIKey: "sk-test", Timeout: 5 * time.Second})
}

func TestCompleteSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
			return
		}
		if req.Model != "qwen/qwen3-32b:free" || req.MaxTokens != 512 || len(req.Messages) != 1 {
			t.Errorf("unexpected request: %+v", req)
		} else if req.Messages[0].Content != "整理对话" {
			t.Errorf("prompt = %q", req.Messages[0].Content)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"A: 你好"},"finish_reason":"length"}]}`))
	})

	resp, err := c.Complete(context.Background(), llm.Request{Model: "qwen/qwen3-32b:free", Prompt: "整理对话", MaxTokens: 512})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "A: 你好" || resp.FinishReason != "length" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCompleteFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit exceeded"}}`,
			check: func(err error) bool {
				var se *llm.StatusError
				return errors.As(err, &se) && se.Code == 429
			},
		},
		{
			name:   "empty content",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"content":""},"finish_reason":"stop"}]}`,
			check:  func(err error) bool { return errors.Is(err, llm.ErrEmptyContent) },
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check:  func(err error) bool { return errors.Is(err, llm.ErrEmptyContent) },
		},
		{
			name:   "inner choice error",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"content":""},"error":{"code":502,"message":"provider crashed"}}]}`,
			check: func(err error) bool {
				var ce *llm.ChoiceError
				return errors.As(err, &ce)
			},
		},
		{
			name:   "top-level error",
			status: http.StatusOK,
			body:   `{"error":{"code":"model_not_found","message":"No endpoints found"}}`,
			check: func(err error) bool {
				var ce *llm.ChoiceError
				return errors.As(err, &ce)
			},
		},
		{
			name:   "malformed json",
			status: http.StatusOK,
			body:   `<html>bad gateway</html>`,
			check:  func(err error) bool { return err != nil },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := c.Complete(context.Background(), llm.Request{Model: "m", Prompt: "p"})
			if err == nil || !tt.check(err) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestCompleteWithoutAPIKey(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	c := New(config.LLMConfig{BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), llm.Request{Model: "m", Prompt: "p"})
	var cfgErr *llm.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
	if hits != 0 {
		t.Errorf("server hit %d times", hits)
	}
}

func TestGatewayOverHTTP(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model == "broke/model" {
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte(`{"error":{"message":"Insufficient credits"}}`))
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	})

	g := llm.NewGateway(c, llm.Options{MaxTokens: 64})
	got, err := g.Send(context.Background(), "p", llm.NewModelList([]string{"broke/model", "free/model"}))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Model != "free/model" || got.Text != "ok" {
		t.Errorf("completion = %+v", got)
	}
}
