package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// quotedString matches every '...' or "..." literal in a models file.
var quotedString = regexp.MustCompile(`['"]([^'"]+)['"]`)

// ModelCandidates resolves the ordered model fallback list, highest priority first:
// llm.models, then the quoted strings of llm.models_file, then llm.model.
// Duplicates and blanks are dropped, first occurrence wins.
func ModelCandidates(cfg LLMConfig) ([]string, error) {
	models := cleanModels(cfg.Models)
	if len(models) > 0 {
		return models, nil
	}

	if cfg.ModelsFile != "" {
		fromFile, err := LoadModelsFile(cfg.ModelsFile)
		if err != nil {
			return nil, err
		}
		if len(fromFile) > 0 {
			return fromFile, nil
		}
	}

	if m := strings.TrimSpace(cfg.Model); m != "" {
		return []string{m}, nil
	}
	return nil, nil
}

// LoadModelsFile extracts model ids from a file such as
//
//	module.exports = ["deepseek/deepseek-chat:free", 'qwen/qwen3-32b:free']
//
// Only quoted literals are read; comments and punctuation are ignored.
// A missing file yields an empty list.
func LoadModelsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading models file: %w", err)
	}

	matches := quotedString.FindAllStringSubmatch(string(data), -1)
	raw := lo.Map(matches, func(m []string, _ int) string { return m[1] })
	return cleanModels(raw), nil
}

func cleanModels(raw []string) []string {
	trimmed := lo.Map(raw, func(s string, _ int) string { return strings.TrimSpace(s) })
	return lo.Uniq(lo.Compact(trimmed))
}
