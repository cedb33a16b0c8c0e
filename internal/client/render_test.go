package client

import (
	"strings"
	"testing"
	"time"
)

var renderTime = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func TestRenderChatLine(t *testing.T) {
	t.Parallel()
	r := NewRenderer("alice", "Server")

	got := r.Render("bob: hello there", renderTime)
	if !strings.HasPrefix(got, "[10:30:00] ") {
		t.Errorf("missing timestamp prefix: %q", got)
	}
	if !strings.Contains(got, "bob") || !strings.HasSuffix(got, ": hello there") {
		t.Errorf("rendered %q", got)
	}
}

func TestRenderPreservesColonInBody(t *testing.T) {
	t.Parallel()
	r := NewRenderer("alice", "Server")

	got := r.Render("bob: note: remember this", renderTime)
	if !strings.HasSuffix(got, ": note: remember this") {
		t.Errorf("rendered %q", got)
	}
}

func TestRenderSystemLines(t *testing.T) {
	t.Parallel()
	r := NewRenderer("alice", "Server")

	for _, line := range []string{
		"*** bob joined the chat ***",
		"Error: File 'x' not found",
	} {
		got := r.Render(line, renderTime)
		if !strings.HasPrefix(got, "[10:30:00] ") {
			t.Errorf("missing timestamp on %q: %q", line, got)
		}
		if !strings.Contains(got, line) {
			t.Errorf("rendered %q", got)
		}
	}
}

func TestRenderUnstructuredLinePassesThrough(t *testing.T) {
	t.Parallel()
	r := NewRenderer("alice", "Server")

	got := r.Render("No files shared yet", renderTime)
	if got != "[10:30:00] No files shared yet" {
		t.Errorf("rendered %q", got)
	}
}

func TestIsSystemLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want bool
	}{
		{"*** bob joined the chat ***", true},
		{"Error: permission denied", true},
		{"bob: hello", false},
		{"No files shared yet", false},
	}
	for _, tt := range tests {
		if got := isSystemLine(tt.line); got != tt.want {
			t.Errorf("isSystemLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
