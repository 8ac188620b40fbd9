// Package chunk splits long documents into bounded segments for model
// consumption and reassembles per-segment outputs in document order.
//
// Split never drops or rewrites bytes: concatenating the chunk texts of a
// document reproduces it exactly.
package chunk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Chunk is one segment of a source document.
type Chunk struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Text  string `json:"text"`
}

// Result is the processed output of one chunk.
type Result struct {
	Index int
	Total int
	Text  string
}

// IncompleteJoinError reports results that do not cover [0, Total) exactly once.
type IncompleteJoinError struct {
	Total      int
	Missing    []int
	Duplicated []int
	Invalid    []int // indices outside [0, Total) or with a different Total
}

func (e *IncompleteJoinError) Error() string {
	return fmt.Sprintf("incomplete join of %d chunks: missing %v, duplicated %v, invalid %v",
		e.Total, e.Missing, e.Duplicated, e.Invalid)
}

// Boundary preference, strongest first.
var (
	paragraphBreaks = []string{"\n\n"}
	lineBreaks      = []string{"\n"}
	sentenceEnds    = []string{"。", "！", "？", "；", ". ", "! ", "? ", "; ", "…"}
	spaces          = []string{" ", "\t", "，", ", "}
)

// Split divides text into chunks of at most maxChars bytes, cutting at the
// strongest boundary available in each window. A single rune longer than
// maxChars becomes its own chunk. The result is deterministic.
func Split(text string, maxChars int) []Chunk {
	if text == "" {
		return nil
	}
	if maxChars < 1 {
		maxChars = 1
	}

	var parts []string
	rest := text
	for len(rest) > maxChars {
		cut := cutPoint(rest, maxChars)
		parts = append(parts, rest[:cut])
		rest = rest[cut:]
	}
	if rest != "" {
		parts = append(parts, rest)
	}

	return lo.Map(parts, func(p string, i int) Chunk {
		return Chunk{Index: i, Total: len(parts), Text: p}
	})
}

// cutPoint returns the byte offset, in (0, maxChars], at which to end the
// next chunk of s. len(s) > maxChars.
func cutPoint(s string, maxChars int) int {
	limit := maxChars
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	if limit == 0 {
		// The first rune alone exceeds maxChars.
		_, size := utf8.DecodeRuneInString(s)
		return size
	}

	window := s[:limit]
	minUseful := limit / 3
	for _, seps := range [][]string{paragraphBreaks, lineBreaks, sentenceEnds, spaces} {
		if cut := lastBoundary(window, seps); cut > minUseful {
			return cut
		}
	}
	for _, seps := range [][]string{paragraphBreaks, lineBreaks, sentenceEnds, spaces} {
		if cut := lastBoundary(window, seps); cut > 0 {
			return cut
		}
	}
	return limit
}

// lastBoundary returns the offset just past the last separator in window, or 0.
func lastBoundary(window string, seps []string) int {
	best := 0
	for _, sep := range seps {
		if idx := strings.LastIndex(window, sep); idx >= 0 && idx+len(sep) > best {
			best = idx + len(sep)
		}
	}
	return best
}

// Join concatenates results by ascending Index. Every index in [0, Total)
// must appear exactly once; completion order is irrelevant.
func Join(results []Result) (string, error) {
	if len(results) == 0 {
		return "", nil
	}
	total := results[0].Total

	seen := make(map[int]int, len(results))
	var invalid []int
	for _, r := range results {
		if r.Total != total || r.Index < 0 || r.Index >= total {
			invalid = append(invalid, r.Index)
			continue
		}
		seen[r.Index]++
	}

	var missing, duplicated []int
	for i := 0; i < total; i++ {
		switch n := seen[i]; {
		case n == 0:
			missing = append(missing, i)
		case n > 1:
			duplicated = append(duplicated, i)
		}
	}
	if len(missing) > 0 || len(duplicated) > 0 || len(invalid) > 0 {
		return "", &IncompleteJoinError{Total: total, Missing: missing, Duplicated: duplicated, Invalid: invalid}
	}

	ordered := append([]Result(nil), results...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var sb strings.Builder
	for _, r := range ordered {
		sb.WriteString(r.Text)
	}
	return sb.String(), nil
}

// Each runs fn for every chunk with at most limit calls in flight and returns
// the results in completion order. The first error cancels the rest.
func Each(ctx context.Context, chunks []Chunk, limit int, fn func(ctx context.Context, c Chunk) (string, error)) ([]Result, error) {
	if limit < 1 {
		limit = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var mu sync.Mutex
	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		g.Go(func() error {
			out, err := fn(ctx, c)
			if err != nil {
				return fmt.Errorf("chunk %d/%d: %w", c.Index+1, c.Total, err)
			}
			mu.Lock()
			results = append(results, Result{Index: c.Index, Total: c.Total, Text: out})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
