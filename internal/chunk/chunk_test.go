package chunk

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func identity(chunks []Chunk) []Result {
	out := make([]Result, len(chunks))
	for i, c := range chunks {
		out[i] = Result{Index: c.Index, Total: c.Total, Text: c.Text}
	}
	return out
}

func randomText(r *rand.Rand, n int) string {
	pieces := []string{"a", "bc", " ", "\n", "\n\n", "。", "你好", "！", "？", ". ", "é", "🙂", "，", "word", "\t"}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(pieces[r.Intn(len(pieces))])
	}
	return sb.String()
}

func TestSplitJoinRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 300; i++ {
		text := randomText(r, r.Intn(400))
		maxChars := 1 + r.Intn(60)

		chunks := Split(text, maxChars)
		got, err := Join(identity(chunks))
		if err != nil {
			t.Fatalf("Join: %v", err)
		}
		if got != text {
			t.Fatalf("round trip mismatch for maxChars=%d\n got %q\nwant %q", maxChars, got, text)
		}

		for _, c := range chunks {
			if !utf8.ValidString(c.Text) {
				t.Fatalf("chunk %d splits a rune: %q", c.Index, c.Text)
			}
			if len(c.Text) > maxChars && utf8.RuneCountInString(c.Text) != 1 {
				t.Fatalf("chunk %d has %d bytes, max %d", c.Index, len(c.Text), maxChars)
			}
			if c.Text == "" {
				t.Fatalf("empty chunk %d", c.Index)
			}
			if c.Total != len(chunks) {
				t.Fatalf("chunk total = %d, want %d", c.Total, len(chunks))
			}
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := randomText(rand.New(rand.NewSource(7)), 500)
	a := Split(text, 37)
	b := Split(text, 37)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Split is not deterministic")
	}
}

func TestSplitPrefersParagraphs(t *testing.T) {
	text := "第一段内容。\n\n第二段内容。\n\n第三段内容。"
	chunks := Split(text, len("第一段内容。\n\n第二段内容。\n\n"))
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2: %+v", len(chunks), chunks)
	}
	if chunks[1].Text != "第三段内容。" {
		t.Errorf("second chunk = %q", chunks[1].Text)
	}
}

func TestSplitSentenceBoundary(t *testing.T) {
	text := "你今年几岁了？我今年八岁。你喜欢上学吗？"
	chunks := Split(text, 40)
	for _, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, "？") && !strings.HasSuffix(c.Text, "。") {
			t.Errorf("chunk %q does not end at a sentence boundary", c.Text)
		}
	}
}

func TestSplitShortAndEmpty(t *testing.T) {
	if got := Split("", 10); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
	got := Split("short", 10)
	if len(got) != 1 || got[0] != (Chunk{Index: 0, Total: 1, Text: "short"}) {
		t.Errorf("Split(short) = %+v", got)
	}
}

func TestSplitOversizedRune(t *testing.T) {
	chunks := Split("你好", 1)
	if len(chunks) != 2 || chunks[0].Text != "你" || chunks[1].Text != "好" {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestSplitEndsOnWideRune(t *testing.T) {
	text := " 好\tb\n\n 好。你\n\na，。"
	chunks := Split(text, 2)
	var sb strings.Builder
	for i, c := range chunks {
		if c.Text == "" {
			t.Fatalf("chunk %d of %d is empty", i, len(chunks))
		}
		if c.Total != len(chunks) {
			t.Errorf("chunk %d total = %d, want %d", i, c.Total, len(chunks))
		}
		sb.WriteString(c.Text)
	}
	if sb.String() != text {
		t.Errorf("round trip = %q, want %q", sb.String(), text)
	}
}

func TestJoinOrdersByIndex(t *testing.T) {
	results := []Result{
		{Index: 2, Total: 3, Text: "c"},
		{Index: 0, Total: 3, Text: "a"},
		{Index: 1, Total: 3, Text: "b"},
	}
	got, err := Join(results)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got != "abc" {
		t.Errorf("Join = %q, want abc", got)
	}
}

func TestJoinIncomplete(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		check   func(*IncompleteJoinError) bool
	}{
		{
			name:    "missing",
			results: []Result{{Index: 0, Total: 3}, {Index: 2, Total: 3}},
			check:   func(e *IncompleteJoinError) bool { return reflect.DeepEqual(e.Missing, []int{1}) },
		},
		{
			name:    "duplicated",
			results: []Result{{Index: 0, Total: 2}, {Index: 0, Total: 2}, {Index: 1, Total: 2}},
			check:   func(e *IncompleteJoinError) bool { return reflect.DeepEqual(e.Duplicated, []int{0}) },
		},
		{
			name:    "out of range",
			results: []Result{{Index: 0, Total: 1}, {Index: 5, Total: 1}},
			check:   func(e *IncompleteJoinError) bool { return reflect.DeepEqual(e.Invalid, []int{5}) },
		},
		{
			name:    "mixed totals",
			results: []Result{{Index: 0, Total: 2}, {Index: 1, Total: 3}},
			check:   func(e *IncompleteJoinError) bool { return len(e.Invalid) == 1 && len(e.Missing) == 1 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Join(tt.results)
			var joinErr *IncompleteJoinError
			if !errors.As(err, &joinErr) {
				t.Fatalf("err = %v, want IncompleteJoinError", err)
			}
			if !tt.check(joinErr) {
				t.Errorf("unexpected error detail: %+v", joinErr)
			}
		})
	}
}

func TestEachCompletionOrderDoesNotMatter(t *testing.T) {
	text := "one.\n\ntwo.\n\nthree.\n\nfour."
	chunks := Split(text, 8)
	if len(chunks) < 3 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	// Earlier chunks finish last.
	results, err := Each(context.Background(), chunks, len(chunks), func(_ context.Context, c Chunk) (string, error) {
		time.Sleep(time.Duration(c.Total-c.Index) * 10 * time.Millisecond)
		return strings.ToUpper(c.Text), nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	if results[0].Index == 0 {
		t.Log("scheduler finished chunks in order; join is still checked below")
	}

	got, err := Join(results)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got != strings.ToUpper(text) {
		t.Errorf("joined = %q", got)
	}
}

func TestEachStopsOnError(t *testing.T) {
	chunks := Split("aaaa bbbb cccc", 5)
	boom := errors.New("boom")
	_, err := Each(context.Background(), chunks, 1, func(_ context.Context, c Chunk) (string, error) {
		if c.Index == 1 {
			return "", boom
		}
		return c.Text, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
}
