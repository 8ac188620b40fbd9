// Package xfyun implements the Transcriber interface using the iFlytek
// long-form speech recognition API (lfasr).
//
// A run normalizes the audio, uploads it, then polls getResult at a fixed
// interval until the order finishes or the poll budget is spent. Two signing
// schemes exist; which one is used is decided once, when the adapter is built,
// from the credentials present in config.
package xfyun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/interviewdesk/internal/audio"
	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/process"
	"github.com/nadzzz/interviewdesk/internal/transcriber"
)

const name = "xfyun"

// Remote order states reported in content.orderInfo.status.
const (
	orderDone   = 4
	orderFailed = -1
)

// Transcriber talks to the lfasr upload/getResult endpoints.
type Transcriber struct {
	creds      Credentials
	scheme     Scheme
	schemeErr  error
	baseURL    string
	language   string
	interval   time.Duration
	maxPolls   int
	normalizer *audio.Normalizer
	client     *http.Client

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	random func() string
}

// New creates an lfasr transcriber from config. Invalid credentials do not
// fail construction; every Transcribe call then returns the ConfigurationError
// before touching the network.
func New(cfg config.XfyunConfig, normalizer *audio.Normalizer) *Transcriber {
	creds := Credentials{AppID: cfg.AppID, Key: cfg.Key, Secret: cfg.Secret}
	scheme, err := SelectScheme(creds)

	baseURL := cfg.LegacyEndpoint
	if _, ok := scheme.(NewScheme); ok {
		baseURL = cfg.Endpoint
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Transcriber{
		creds:      creds,
		scheme:     scheme,
		schemeErr:  err,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   cfg.Language,
		interval:   cfg.PollInterval,
		maxPolls:   cfg.MaxPolls,
		normalizer: normalizer,
		client:     &http.Client{Timeout: timeout},
		now:        time.Now,
		sleep:      sleepCtx,
		random: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		},
	}
}

// Name returns the backend identifier.
func (t *Transcriber) Name() string { return name }

// Scheme returns the selected signing scheme, or the configuration error.
func (t *Transcriber) Scheme() (Scheme, error) { return t.scheme, t.schemeErr }

// Transcribe uploads the normalized audio and waits for the remote result.
func (t *Transcriber) Transcribe(ctx context.Context, req transcriber.Request) (*transcriber.Result, error) {
	if t.schemeErr != nil {
		return nil, t.schemeErr
	}
	logger := slog.With("job_id", req.JobID, "backend", name, "scheme", t.scheme.Name())

	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	req.ReportProgress(0, "converting audio (ffmpeg)")
	wavPath := filepath.Join(req.WorkDir, "audio.wav")
	info, convRes, err := t.normalizer.Normalize(ctx, req.InputPath, wavPath)
	if convRes.Command != "" {
		req.ReportLog(convRes.String())
	}
	if err != nil {
		var convErr *transcriber.ConversionError
		if errors.As(err, &convErr) {
			lines := process.ScanLines(convErr.Output)
			for _, line := range lines[max(0, len(lines)-20):] {
				req.ReportLog(line)
			}
		}
		return nil, err
	}

	req.ReportProgress(0, "uploading to xfyun")
	orderID, err := t.upload(ctx, req, wavPath, info.Duration)
	if err != nil {
		return nil, err
	}
	logger.Info("audio uploaded", "order_id", orderID)

	text, err := t.poll(ctx, req, orderID)
	if err != nil {
		return nil, err
	}
	req.ReportProgress(100, "done")
	logger.Info("remote transcription complete", "order_id", orderID, "text_length", len(text))
	return &transcriber.Result{Text: text}, nil
}

func (t *Transcriber) upload(ctx context.Context, req transcriber.Request, wavPath string, dur time.Duration) (string, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return "", fmt.Errorf("reading normalized audio: %w", err)
	}

	params := url.Values{}
	params.Set("fileName", filepath.Base(req.InputPath))
	params.Set("fileSize", strconv.Itoa(len(data)))
	params.Set("duration", strconv.Itoa(int(math.Ceil(dur.Seconds()))))
	if _, ok := t.scheme.(NewScheme); ok && t.language != "" {
		params.Set("language", t.language)
	}

	var resp apiResponse
	raw, err := t.call(ctx, "/upload", params, data, &resp)
	req.ReportLog("upload: " + truncate(raw, 500))
	if err != nil {
		return "", err
	}
	if resp.Content.OrderID == "" {
		return "", &transcriber.RecognitionError{Backend: name, Message: "upload response has no orderId", Output: raw}
	}
	return resp.Content.OrderID, nil
}

func (t *Transcriber) poll(ctx context.Context, req transcriber.Request, orderID string) (string, error) {
	start := t.now()
	params := url.Values{}
	params.Set("orderId", orderID)
	params.Set("resultType", "transfer")

	for attempt := 1; attempt <= t.maxPolls; attempt++ {
		var resp apiResponse
		raw, err := t.call(ctx, "/getResult", params, nil, &resp)
		if err != nil {
			req.ReportLog(fmt.Sprintf("getResult #%d: %s", attempt, truncate(raw, 500)))
			return "", err
		}

		status := resp.Content.OrderInfo.Status
		switch status {
		case orderDone:
			req.ReportLog(fmt.Sprintf("getResult #%d: done", attempt))
			text, err := ParseOrderResult(resp.Content.OrderResult)
			if err != nil {
				return "", &transcriber.RecognitionError{Backend: name, Message: "malformed orderResult", Output: truncate(raw, 2000), Err: err}
			}
			return text, nil
		case orderFailed:
			req.ReportLog(fmt.Sprintf("getResult #%d: %s", attempt, truncate(raw, 500)))
			return "", &transcriber.RecognitionError{
				Backend: name,
				Message: fmt.Sprintf("remote order failed (failType %d)", resp.Content.OrderInfo.FailType),
				Output:  raw,
			}
		}

		req.ReportLog(fmt.Sprintf("getResult #%d: status %d", attempt, status))
		req.ReportProgress(0, fmt.Sprintf("waiting for xfyun (poll %d/%d)", attempt, t.maxPolls))
		if attempt == t.maxPolls {
			break
		}
		if err := t.sleep(ctx, t.interval); err != nil {
			return "", err
		}
	}
	return "", &transcriber.TimeoutError{Backend: name, Polls: t.maxPolls, Elapsed: t.now().Sub(start)}
}

// call signs and sends one request, decoding the common response envelope.
// The raw body is returned for diagnostics in every case.
func (t *Transcriber) call(ctx context.Context, path string, params url.Values, body []byte, out *apiResponse) (string, error) {
	q, header := t.sign(params)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating %s request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/octet-stream")
	}
	for k, v := range header {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", &transcriber.RecognitionError{Backend: name, Message: path + " request failed", Err: err}
	}
	defer resp.Body.Close()

	rawBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	raw := string(rawBytes)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, &transcriber.RecognitionError{
			Backend: name,
			Message: fmt.Sprintf("%s failed (status %d)", path, resp.StatusCode),
			Output:  raw,
		}
	}
	if err := json.Unmarshal(rawBytes, out); err != nil {
		return raw, &transcriber.RecognitionError{Backend: name, Message: path + " returned malformed JSON", Output: raw, Err: err}
	}
	if !out.ok() {
		return raw, &transcriber.RecognitionError{
			Backend: name,
			Message: fmt.Sprintf("%s rejected: code %s %s", path, string(out.Code), out.description()),
			Output:  raw,
		}
	}
	return raw, nil
}

// sign adds the scheme's authentication parameters to a copy of params.
func (t *Transcriber) sign(params url.Values) (url.Values, map[string]string) {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("appId", t.creds.AppID)

	switch s := t.scheme.(type) {
	case NewScheme:
		q.Set("accessKeyId", s.Key)
		q.Set("dateTime", t.now().Format("2006-01-02T15:04:05-0700"))
		q.Set("signatureRandom", t.random())
		return q, map[string]string{"signature": Signature(q, s.Secret)}
	case LegacyScheme:
		ts := strconv.FormatInt(t.now().Unix(), 10)
		q.Set("ts", ts)
		q.Set("signa", Signa(t.creds.AppID, ts, s.Secret))
	}
	return q, nil
}

// apiResponse is the envelope shared by upload and getResult.
type apiResponse struct {
	Code     json.RawMessage `json:"code"`
	Desc     string          `json:"desc"`
	DescInfo string          `json:"descInfo"`
	Content  struct {
		OrderID     string `json:"orderId"`
		OrderResult string `json:"orderResult"`
		OrderInfo   struct {
			OrderID  string `json:"orderId"`
			Status   int    `json:"status"`
			FailType int    `json:"failType"`
		} `json:"orderInfo"`
	} `json:"content"`
}

// ok accepts the success codes used across API versions: 0, "0" and "000000".
func (r *apiResponse) ok() bool {
	code := strings.Trim(string(r.Code), `" `)
	if code == "" {
		return false
	}
	n, err := strconv.Atoi(code)
	return err == nil && n == 0
}

func (r *apiResponse) description() string {
	if r.DescInfo != "" {
		return r.DescInfo
	}
	return r.Desc
}

// ParseOrderResult extracts plain text from an orderResult document, one
// recognized sentence per line.
func ParseOrderResult(orderResult string) (string, error) {
	if strings.TrimSpace(orderResult) == "" {
		return "", errors.New("empty orderResult")
	}
	var doc struct {
		Lattice []struct {
			JSON1Best json.RawMessage `json:"json_1best"`
		} `json:"lattice"`
	}
	if err := json.Unmarshal([]byte(orderResult), &doc); err != nil {
		return "", fmt.Errorf("decoding orderResult: %w", err)
	}

	var lines []string
	for i, l := range doc.Lattice {
		best := []byte(l.JSON1Best)
		// json_1best is usually a JSON document encoded as a string.
		if len(best) > 0 && best[0] == '"' {
			var s string
			if err := json.Unmarshal(best, &s); err != nil {
				return "", fmt.Errorf("lattice %d: %w", i, err)
			}
			best = []byte(s)
		}

		var sentence struct {
			St struct {
				Rt []struct {
					Ws []struct {
						Cw []struct {
							W string `json:"w"`
						} `json:"cw"`
					} `json:"ws"`
				} `json:"rt"`
			} `json:"st"`
		}
		if err := json.Unmarshal(best, &sentence); err != nil {
			return "", fmt.Errorf("lattice %d: %w", i, err)
		}

		var sb strings.Builder
		for _, rt := range sentence.St.Rt {
			for _, ws := range rt.Ws {
				if len(ws.Cw) > 0 {
					sb.WriteString(ws.Cw[0].W)
				}
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
