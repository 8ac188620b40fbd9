package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/nadzzz/interviewdesk/internal/config"
	"github.com/nadzzz/interviewdesk/internal/llm"
	"github.com/nadzzz/interviewdesk/internal/llm/openai"
	"github.com/nadzzz/interviewdesk/internal/postprocess"
)

// pipeline is the LLM side of the daemon, shared by serve and the offline commands.
type pipeline struct {
	models    llm.ModelList
	formatter *postprocess.Formatter
	matcher   *postprocess.Matcher
}

func newPipeline(cfg config.LLMConfig) (*pipeline, error) {
	ids, err := config.ModelCandidates(cfg)
	if err != nil {
		return nil, err
	}
	models := llm.NewModelList(ids)
	if models.Len() == 0 {
		slog.Warn("no llm models configured; format and match requests will fail")
	}

	gateway := llm.NewGateway(openai.New(cfg), llm.Options{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	})
	proc := postprocess.NewProcessor(gateway, models, postprocess.Options{
		MaxChars:    cfg.MaxChars,
		Concurrency: cfg.ChunkConcurrency,
	})
	return &pipeline{
		models:    models,
		formatter: postprocess.NewFormatter(proc),
		matcher:   postprocess.NewMatcher(proc),
	}, nil
}

func countQuestions(cats []postprocess.Category) int {
	return lo.SumBy(cats, func(c postprocess.Category) int { return len(c.Questions) })
}

func newFormatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "format <transcript.txt|->",
		Short: "Rewrite a transcript as an interviewer/respondent dialogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			config.SetupLogging(cfg.Logging)

			transcript, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := newPipeline(cfg.LLM)
			if err != nil {
				return err
			}
			res, err := p.formatter.Format(cmd.Context(), transcript)
			if err != nil {
				return err
			}
			return writeResult(cmd, res)
		},
	}
}

func newMatchCmd() *cobra.Command {
	var questionsFile string
	cmd := &cobra.Command{
		Use:   "match <transcript.txt|->",
		Short: "Answer a question outline from a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			config.SetupLogging(cfg.Logging)

			if questionsFile == "" {
				questionsFile = cfg.LLM.QuestionsFile
			}
			questions, err := postprocess.LoadQuestions(questionsFile)
			if err != nil {
				return err
			}
			transcript, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := newPipeline(cfg.LLM)
			if err != nil {
				return err
			}
			res, err := p.matcher.Match(cmd.Context(), transcript, questions)
			if err != nil {
				return err
			}
			return writeResult(cmd, res)
		},
	}
	cmd.Flags().StringVar(&questionsFile, "questions", "", "questions JSON file (default llm.questions_file)")
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading transcript: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("transcript %s is empty", path)
	}
	return string(data), nil
}

func writeResult(cmd *cobra.Command, res postprocess.Result) error {
	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	fmt.Fprintf(cmd.ErrOrStderr(), "model: %s, chunks: %d, finish_reason: %s\n", res.Model(), res.Chunks, res.FinishReason)
	return nil
}
