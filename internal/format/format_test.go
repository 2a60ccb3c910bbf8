package format

import "testing"

func TestJoinClean(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		sep   string
		want  string
	}{
		{"single separator", []string{"one", "two", "three"}, "", "one\ntwo\nthree"},
		{"collapses runs", []string{"a   b\n\n\nc", "  d  "}, "\n", "a b\nc\nd"},
		{"empty page", []string{"a", "", "b"}, "\n", "a\nb"},
		{"crlf", []string{"x\r\ny\rz"}, "", "x\ny\nz"},
		{"custom separator", []string{"a", "b"}, " | ", "a | b"},
		{"blank line separator kept", []string{"a\n\nb", "c"}, "\n\n", "a\nb\n\nc"},
		{"whitespace-only page", []string{"a", " \n ", "b"}, "\n", "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinClean(tt.pages, tt.sep); got != tt.want {
				t.Errorf("JoinClean(%q) = %q, want %q", tt.pages, got, tt.want)
			}
		})
	}
}

func TestJoinKeepsEmptyPages(t *testing.T) {
	if got := Join([]string{"a", "", "b"}, "\n"); got != "a\n\nb" {
		t.Errorf("Join = %q", got)
	}
}

func TestCleanLineEdges(t *testing.T) {
	tests := []struct{ in, want string }{
		{"x  \n  y", "x\ny"},
		{"  lead and trail  ", "lead and trail"},
		{"a \n \n b", "a\nb"},
	}
	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
