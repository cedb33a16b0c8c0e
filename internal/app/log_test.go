package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestChatHandler_Handle(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		role    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			role:    "server",
			level:   slog.LevelInfo,
			message: "session registered",
			want:    "2026-03-01T10:30:45Z\tINFO\tserver\tsession registered\n",
		},
		{
			name:    "warn level",
			role:    "server",
			level:   slog.LevelWarn,
			message: "session evicted",
			want:    "2026-03-01T10:30:45Z\tWARN\tserver\tsession evicted\n",
		},
		{
			name:    "with record attrs",
			role:    "client",
			level:   slog.LevelInfo,
			message: "download saved",
			attrs:   []slog.Attr{slog.String("file", "notes.txt"), slog.Int("size", 42)},
			want:    "2026-03-01T10:30:45Z\tINFO\tclient\tdownload saved\tfile=notes.txt\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &chatHandler{w: &buf, role: tt.role}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestChatHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &chatHandler{w: &buf, role: "server"}

	// Add pre-set attrs
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "hub")}).(*chatHandler)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "broadcast", 0)
	r.AddAttrs(slog.String("sender", "alice"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=hub") {
		t.Errorf("expected pre-set attr component=hub, got: %q", got)
	}
	if !strings.Contains(got, "sender=alice") {
		t.Errorf("expected record attr sender=alice, got: %q", got)
	}
}

func TestChatHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &chatHandler{w: &buf, role: "server", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*chatHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestChatHandler_Enabled(t *testing.T) {
	h := &chatHandler{}
	// All levels should be enabled
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, f, err := newLogger(dir, "server", false)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	if logger == nil {
		t.Fatal("newLogger() returned nil logger")
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}
}
