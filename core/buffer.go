package core

import "pkt.systems/blockdeck/schema"

const defaultMaxLines = schema.DefaultBufferMaxLines

// buffer stores console scrollback lines, bounded to the most recent
// maxLines entries. Empty lines are kept; blank output is meaningful in
// console logs.
type buffer struct {
	lines    []string
	maxLines int
}

// Append adds lines, evicting from the head once the limit is exceeded.
func (b *buffer) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	b.lines = append(b.lines, lines...)
	b.trim()
}

// Replace swaps the whole content, keeping the suffix when the input
// exceeds the limit.
func (b *buffer) Replace(lines []string) {
	b.lines = append([]string(nil), lines...)
	b.trim()
}

// Reset drops all content.
func (b *buffer) Reset() {
	b.lines = nil
}

// Len returns the current line count.
func (b *buffer) Len() int {
	return len(b.lines)
}

// Last returns the most recent line, or "" when empty.
func (b *buffer) Last() string {
	if len(b.lines) == 0 {
		return ""
	}
	return b.lines[len(b.lines)-1]
}

// Snapshot returns up to limit trailing lines as a copy. A limit of zero
// or less returns everything.
func (b *buffer) Snapshot(limit int) schema.ConsoleSnapshot {
	total := len(b.lines)
	if limit <= 0 || limit > total {
		limit = total
	}
	lines := make([]string, limit)
	copy(lines, b.lines[total-limit:])
	return schema.ConsoleSnapshot{
		Lines:      lines,
		TotalLines: total,
	}
}

func (b *buffer) trim() {
	maxLines := b.maxLines
	if maxLines <= 0 {
		maxLines = defaultMaxLines
	}
	if len(b.lines) > maxLines {
		trimmed := make([]string, maxLines)
		copy(trimmed, b.lines[len(b.lines)-maxLines:])
		b.lines = trimmed
	}
}

func newBufferWithMaxLines(maxLines int) *buffer {
	buf := &buffer{maxLines: defaultMaxLines}
	if maxLines > 0 {
		buf.maxLines = maxLines
	}
	return buf
}
