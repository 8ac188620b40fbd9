// Package openai implements llm.Client against an OpenAI-compatible Chat
// Completions endpoint, such as the OpenRouter aggregator.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/llm"
)

// maxErrorBody bounds how much of a failed reply is kept for diagnosis.
const maxErrorBody = 4096

// Client issues chat completion requests. Only the model varies between
// fallback attempts.
type Client struct {
	chatURL string
	apiKey  string
	client  *http.Client
}

// New creates a chat client from config.
func New(cfg config.LLMConfig) *Client {
	return &Client{
		chatURL: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete sends one prompt to one model.
func (c *Client) Complete(ctx context.Context, r llm.Request) (*llm.Response, error) {
	if c.apiKey == "" {
		return nil, &llm.ConfigurationError{Message: "llm.api_key is not set"}
	}

	reqBody := chatRequest{
		Model: string(r.Model),
		Messages: []chatMessage{
			{Role: "user", Content: r.Prompt},
		},
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &llm.StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	// Some providers answer 200 with an error object instead of choices.
	if chatResp.Error != nil {
		return nil, &llm.ChoiceError{Message: chatResp.Error.String()}
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned: %w", llm.ErrEmptyContent)
	}

	choice := chatResp.Choices[0]
	if choice.Error != nil {
		return nil, &llm.ChoiceError{Message: choice.Error.String()}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, fmt.Errorf("finish_reason %q: %w", choice.FinishReason, llm.ErrEmptyContent)
	}

	slog.Debug("chat completion received",
		"model", r.Model,
		"finish_reason", choice.FinishReason,
		"content_length", len(choice.Message.Content),
	)
	return &llm.Response{
		Text:         choice.Message.Content,
		FinishReason: choice.FinishReason,
	}, nil
}

// --- Internal types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string    `json:"finish_reason"`
		Error        *apiError `json:"error,omitempty"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    json.RawMessage `json:"code,omitempty"`
	Message string          `json:"message"`
}

func (e *apiError) String() string {
	if len(e.Code) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (code %s)", e.Message, e.Code)
}
