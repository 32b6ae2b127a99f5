package console

import (
	"strings"
	"sync"
)

// DefaultCapacity bounds console scrollback retention.
const DefaultCapacity = 1000

// LogBuffer holds the visible console lines for one view. Appends beyond
// capacity evict from the head so the buffer always carries the most
// recent lines in arrival order. Empty lines are kept; blank lines in
// server output are meaningful.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

// NewLogBuffer constructs a buffer with the given capacity. Non-positive
// capacities fall back to DefaultCapacity.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LogBuffer{max: capacity}
}

// Append adds one line, evicting the oldest when full.
func (b *LogBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

// Replace swaps the whole content, keeping the suffix when the input
// exceeds capacity.
func (b *LogBuffer) Replace(lines []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(lines) > b.max {
		lines = lines[len(lines)-b.max:]
	}
	b.lines = append(b.lines[:0:0], lines...)
}

// Lines returns a copy of the current content.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// Len reports the number of retained lines.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// String joins the content with newlines for rendering.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.lines, "\n")
}
