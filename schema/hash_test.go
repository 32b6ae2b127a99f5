package schema

import "testing"

func TestHashContentIsStable(t *testing.T) {
	a := HashContent([]byte("motd=hello"))
	b := HashContent([]byte("motd=hello"))
	c := HashContent([]byte("motd=world"))
	if a != b {
		t.Fatalf("expected stable hash, got %q vs %q", a, b)
	}
	if a == c {
		t.Fatalf("expected different hash for different content")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex digits, got %q", a)
	}
}
