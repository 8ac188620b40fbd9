// Package postprocess rewrites transcripts with a chat model: dialogue
// formatting and question matching. Long transcripts are split into chunks,
// each chunk is sent through the model fallback list on its own, and the
// outputs are joined back in document order.
package postprocess

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/samber/lo"

	"github.com/nadzzz/interviewdesk/internal/chunk"
	"github.com/nadzzz/interviewdesk/internal/llm"
)

// FinishStop is the finish reason of a naturally completed reply.
const FinishStop = "stop"

// Sender sends one prompt through a model list.
type Sender interface {
	Send(ctx context.Context, prompt string, models llm.ModelList) (llm.Completion, error)
}

// Options control chunking.
type Options struct {
	MaxChars    int // chunk only when the transcript is longer, in bytes
	Concurrency int // chunk sends in flight
}

// Result is a processed document.
type Result struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Models       []llm.Model `json:"models"` // distinct models used, in chunk order
	Chunks       int         `json:"chunks"`
}

// Model returns the models used as one comma-separated string.
func (r Result) Model() string {
	return strings.Join(lo.Map(r.Models, func(m llm.Model, _ int) string { return string(m) }), ",")
}

// promptData is what every prompt template sees.
type promptData struct {
	Text  string
	Part  int // 1-based
	Total int
	Extra any
}

// Processor drives templates through the chunker and the gateway.
type Processor struct {
	sender Sender
	models llm.ModelList
	opts   Options
}

// NewProcessor returns a processor sending through sender with the given models.
func NewProcessor(sender Sender, models llm.ModelList, opts Options) *Processor {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Processor{sender: sender, models: models, opts: opts}
}

// Process renders tmpl for text, or for each chunk of text when it exceeds
// MaxChars, and returns the joined model output. The overall finish reason is
// the first non-"stop" reason in chunk order.
func (p *Processor) Process(ctx context.Context, text string, tmpl *template.Template, extra any) (Result, error) {
	return p.process(ctx, text, tmpl, extra, false)
}

// partHeading labels one chunk's answer in a multi-part result.
func partHeading(part, total int) string {
	return fmt.Sprintf("【第 %d/%d 部分】\n", part, total)
}

func (p *Processor) process(ctx context.Context, text string, tmpl *template.Template, extra any, headings bool) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("transcript is empty")
	}

	chunks := []chunk.Chunk{{Index: 0, Total: 1, Text: text}}
	if p.opts.MaxChars > 0 && len(text) > p.opts.MaxChars {
		chunks = chunk.Split(text, p.opts.MaxChars)
	}
	slog.Debug("post-processing transcript", "template", tmpl.Name(), "bytes", len(text), "chunks", len(chunks))

	completions := make([]llm.Completion, len(chunks))
	results, err := chunk.Each(ctx, chunks, p.opts.Concurrency, func(ctx context.Context, c chunk.Chunk) (string, error) {
		prompt, err := render(tmpl, promptData{Text: c.Text, Part: c.Index + 1, Total: c.Total, Extra: extra})
		if err != nil {
			return "", err
		}
		comp, err := p.sender.Send(ctx, prompt, p.models)
		if err != nil {
			return "", err
		}
		completions[c.Index] = comp

		out := strings.TrimSpace(comp.Text)
		if headings && c.Total > 1 {
			out = partHeading(c.Index+1, c.Total) + out
		}
		if c.Index < c.Total-1 {
			out += "\n\n"
		}
		return out, nil
	})
	if err != nil {
		return Result{}, err
	}

	joined, err := chunk.Join(results)
	if err != nil {
		return Result{}, err
	}

	reason := FinishStop
	for _, c := range completions {
		if c.FinishReason != "" && c.FinishReason != FinishStop {
			reason = c.FinishReason
			break
		}
	}
	return Result{
		Text:         joined,
		FinishReason: reason,
		Models:       lo.Uniq(lo.Map(completions, func(c llm.Completion, _ int) llm.Model { return c.Model })),
		Chunks:       len(chunks),
	}, nil
}

func render(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
