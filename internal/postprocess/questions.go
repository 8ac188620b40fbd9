package postprocess

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Question is one numbered outline item.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Category groups questions under a heading.
type Category struct {
	Title     string     `json:"title"`
	Count     int        `json:"count,omitempty"`
	Questions []Question `json:"questions"`
}

// defaultTitle heads a flat question list.
const defaultTitle = "访谈问题"

// LoadQuestions reads a questions file, see ParseQuestions.
func LoadQuestions(path string) ([]Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading questions file: %w", err)
	}
	cats, err := ParseQuestions(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cats, nil
}

// ParseQuestions accepts a list of categories, a flat list of {id, text}
// questions, or a flat list of strings. Flat lists become one category and
// missing ids are numbered from 1.
func ParseQuestions(data []byte) ([]Category, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("questions are empty")
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("questions must be a JSON array: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var probe map[string]json.RawMessage
	if json.Unmarshal(raw[0], &probe) == nil {
		if _, ok := probe["questions"]; ok {
			var cats []Category
			if err := json.Unmarshal(data, &cats); err != nil {
				return nil, fmt.Errorf("decoding categories: %w", err)
			}
			for i := range cats {
				numberQuestions(cats[i].Questions)
				cats[i].Count = len(cats[i].Questions)
			}
			return cats, nil
		}
		var qs []Question
		if err := json.Unmarshal(data, &qs); err != nil {
			return nil, fmt.Errorf("decoding questions: %w", err)
		}
		numberQuestions(qs)
		return []Category{{Title: defaultTitle, Count: len(qs), Questions: qs}}, nil
	}

	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("questions must be objects or strings: %w", err)
	}
	qs := make([]Question, 0, len(texts))
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			qs = append(qs, Question{Text: t})
		}
	}
	numberQuestions(qs)
	return []Category{{Title: defaultTitle, Count: len(qs), Questions: qs}}, nil
}

func numberQuestions(qs []Question) {
	for i := range qs {
		if qs[i].ID == "" {
			qs[i].ID = strconv.Itoa(i + 1)
		}
	}
}
