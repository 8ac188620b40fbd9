package process

import "sync"

// Tail keeps the last N lines written to it. The zero value keeps nothing;
// use NewTail.
type Tail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

// NewTail creates a tail bounded to max lines.
func NewTail(max int) *Tail {
	if max <= 0 {
		max = 80
	}
	return &Tail{max: max, lines: make([]string, 0, max)}
}

// Add appends one line, dropping the oldest beyond the bound.
func (t *Tail) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.max == 0 {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		trim := len(t.lines) - t.max
		t.lines = append(t.lines[:0:0], t.lines[trim:]...)
	}
}

// AddAll appends each line in order.
func (t *Tail) AddAll(lines []string) {
	for _, l := range lines {
		t.Add(l)
	}
}

// Lines returns a copy of the retained lines, oldest first.
func (t *Tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}
