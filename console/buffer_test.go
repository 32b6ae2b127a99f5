package console

import (
	"fmt"
	"testing"
)

func TestLogBufferCapacityInvariant(t *testing.T) {
	buf := NewLogBuffer(5)
	for i := 0; i < 12; i++ {
		buf.Append(fmt.Sprintf("line %d", i))
		want := i + 1
		if want > 5 {
			want = 5
		}
		if buf.Len() != want {
			t.Fatalf("after %d appends expected %d lines, got %d", i+1, want, buf.Len())
		}
	}
	lines := buf.Lines()
	for i, line := range lines {
		want := fmt.Sprintf("line %d", 7+i)
		if line != want {
			t.Fatalf("expected suffix of append sequence, got %v", lines)
		}
	}
}

func TestLogBufferReplaceTakesSuffix(t *testing.T) {
	buf := NewLogBuffer(3)
	buf.Replace([]string{"a", "b", "c", "d", "e"})
	lines := buf.Lines()
	want := []string{"c", "d", "e"}
	if len(lines) != len(want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, lines)
		}
	}
	buf.Replace(nil)
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer after nil replace, got %d", buf.Len())
	}
}

func TestLogBufferKeepsEmptyLines(t *testing.T) {
	buf := NewLogBuffer(10)
	buf.Append("first")
	buf.Append("")
	buf.Append("third")
	if buf.Len() != 3 {
		t.Fatalf("expected blank line retained, got %d lines", buf.Len())
	}
	if buf.String() != "first\n\nthird" {
		t.Fatalf("unexpected render: %q", buf.String())
	}
}

func TestLogBufferLinesIsACopy(t *testing.T) {
	buf := NewLogBuffer(10)
	buf.Append("original")
	lines := buf.Lines()
	lines[0] = "mutated"
	if buf.Lines()[0] != "original" {
		t.Fatalf("buffer content leaked through Lines")
	}
}
