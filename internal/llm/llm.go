// Package llm sends prompts to an ordered list of interchangeable chat models,
// falling through to the next model whenever one fails.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Model identifies one chat model on the aggregator, e.g. "deepseek/deepseek-chat:free".
type Model string

// ModelList is an ordered, de-duplicated list of models, highest priority first.
// It is immutable once built.
type ModelList struct {
	models []Model
}

// NewModelList builds a list from raw ids, dropping blanks and later duplicates.
func NewModelList(ids []string) ModelList {
	trimmed := lo.Map(ids, func(s string, _ int) string { return strings.TrimSpace(s) })
	uniq := lo.Uniq(lo.Compact(trimmed))
	return ModelList{models: lo.Map(uniq, func(s string, _ int) Model { return Model(s) })}
}

// Models returns a copy of the list.
func (l ModelList) Models() []Model { return append([]Model(nil), l.models...) }

// Len returns the number of models.
func (l ModelList) Len() int { return len(l.models) }

// Strings returns the model ids in priority order.
func (l ModelList) Strings() []string {
	return lo.Map(l.models, func(m Model, _ int) string { return string(m) })
}

// Request is one chat completion call against a single model.
type Request struct {
	Model       Model
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the successful reply of a single model.
type Response struct {
	Text         string
	FinishReason string
}

// Client performs a single chat completion. Implementations report HTTP
// failures as *StatusError, blank replies as ErrEmptyContent and errors
// embedded in a choice as *ChoiceError.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Completion is the result of a successful Send.
type Completion struct {
	Text         string `json:"text"`
	Model        Model  `json:"model"`
	FinishReason string `json:"finish_reason"`
}

// Attempt records one failed model call.
type Attempt struct {
	Model       Model
	Err         error
	Recoverable bool
	Duration    time.Duration
}

// Options tune the requests the gateway issues.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Gateway drives a Client through a model list.
type Gateway struct {
	client Client
	opts   Options
	logger *slog.Logger
}

// NewGateway returns a gateway issuing requests through client.
func NewGateway(client Client, opts Options) *Gateway {
	return &Gateway{client: client, opts: opts, logger: slog.Default()}
}

// Send tries each model in order and returns the first successful completion.
// Every failure advances to the next model; when none succeeds the result is
// an *AllModelsExhaustedError carrying one Attempt per model.
func (g *Gateway) Send(ctx context.Context, prompt string, models ModelList) (Completion, error) {
	if models.Len() == 0 {
		return Completion{}, &ConfigurationError{Message: "no models configured (llm.models, llm.models_file or llm.model)"}
	}

	attempts := make([]Attempt, 0, models.Len())
	for _, model := range models.models {
		if err := ctx.Err(); err != nil {
			return Completion{}, fmt.Errorf("llm send interrupted after %d attempts: %w", len(attempts), err)
		}

		start := time.Now()
		resp, err := g.client.Complete(ctx, Request{
			Model:       model,
			Prompt:      prompt,
			MaxTokens:   g.opts.MaxTokens,
			Temperature: g.opts.Temperature,
		})
		if err == nil && strings.TrimSpace(resp.Text) == "" {
			err = ErrEmptyContent
		}
		if err == nil {
			if len(attempts) > 0 {
				g.logger.Info("model fallback succeeded", "model", model, "failed_models", len(attempts))
			}
			return Completion{Text: resp.Text, Model: model, FinishReason: resp.FinishReason}, nil
		}

		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			return Completion{}, err
		}

		recoverable := IsRecoverable(err)
		attempts = append(attempts, Attempt{Model: model, Err: err, Recoverable: recoverable, Duration: time.Since(start)})
		attrs := []any{"model", model, "recoverable", recoverable, "error", truncate(err.Error(), summaryLimit)}
		// Non-recoverable failures point at a request or account problem; keep the whole reply.
		var statusErr *StatusError
		if !recoverable && errors.As(err, &statusErr) {
			attrs = append(attrs, "body", statusErr.Body)
		}
		g.logger.Warn("model failed, trying next", attrs...)
	}
	return Completion{}, &AllModelsExhaustedError{Attempts: attempts}
}
