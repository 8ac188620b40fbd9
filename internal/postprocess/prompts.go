package postprocess

import (
	"context"
	"fmt"
	"strings"
	"text/template"
)

// Unanswered marks a question the interviewee never addressed.
const Unanswered = "未回答"

const formatPrompt = `你是一名访谈记录整理助手。下面是一段没有说话人标注的访谈录音转写稿{{ if gt .Total 1 }}（第 {{ .Part }}/{{ .Total }} 部分）{{ end }}。

请把它整理成访谈者与受访者两方的对话：
- 每一轮以 "访谈者：" 或 "受访者：" 开头，单独成段。
- 按原文顺序输出，不要增删内容，不要总结，只修正明显的错别字和标点。
- 无法判断说话人的句子，按上下文归入最可能的一方。

转写稿：
{{ .Text }}
`

const matchPrompt = `你是一名访谈记录分析助手。下面是访谈提纲和一段访谈转写稿{{ if gt .Total 1 }}（第 {{ .Part }}/{{ .Total }} 部分，仅根据这一部分作答）{{ end }}。

请逐题找出受访者的回答：
- 按提纲顺序输出每个类别和每道题，格式为 "题号. 题目" 换行 "回答：..."。
- 回答尽量引用原话，可以适当精简。
- 转写稿中找不到回答的题目，回答写 "{{ unanswered }}"，不要省略该题。

访谈提纲：
{{ range .Extra }}
## {{ .Title }}
{{ range .Questions }}{{ .ID }}. {{ .Text }}
{{ end }}{{ end }}
转写稿：
{{ .Text }}
`

var (
	formatTemplate = template.Must(template.New("format").Parse(formatPrompt))
	matchTemplate  = template.Must(template.New("match").Funcs(template.FuncMap{
		"unanswered": func() string { return Unanswered },
	}).Parse(matchPrompt))
)

// Formatter rewrites an unlabelled transcript as a two-speaker dialogue.
type Formatter struct {
	p *Processor
}

// NewFormatter returns a Formatter backed by p.
func NewFormatter(p *Processor) *Formatter { return &Formatter{p: p} }

// Format returns the transcript as interviewer/interviewee turns.
func (f *Formatter) Format(ctx context.Context, transcript string) (Result, error) {
	return f.p.Process(ctx, transcript, formatTemplate, nil)
}

// Matcher aligns a transcript against a question outline.
type Matcher struct {
	p *Processor
}

// NewMatcher returns a Matcher backed by p.
func NewMatcher(p *Processor) *Matcher { return &Matcher{p: p} }

// Match answers every question from the transcript, marking unanswered ones explicitly.
// A chunked transcript yields one answered outline per part, each under a
// part heading, since a question unanswered in one part may be answered in another.
func (m *Matcher) Match(ctx context.Context, transcript string, questions []Category) (Result, error) {
	if countQuestions(questions) == 0 {
		return Result{}, fmt.Errorf("no questions to match")
	}
	return m.p.process(ctx, transcript, matchTemplate, questions, true)
}

func countQuestions(cats []Category) int {
	n := 0
	for _, c := range cats {
		n += len(c.Questions)
	}
	return n
}

// RenderQuestions prints an outline as plain text, one question per line.
func RenderQuestions(cats []Category) string {
	var sb strings.Builder
	for i, c := range cats {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(c.Title + "\n")
		for _, q := range c.Questions {
			fmt.Fprintf(&sb, "%s. %s\n", q.ID, q.Text)
		}
	}
	return sb.String()
}
