package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// chatHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<role>\t<message>\t<key=value ...>
type chatHandler struct {
	w     io.Writer
	role  string
	attrs []slog.Attr
}

func (h *chatHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *chatHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	level := r.Level.String()

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, level, h.role, r.Message)
	if err != nil {
		return err
	}

	// Write pre-set attrs.
	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}

	// Write per-record attrs.
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *chatHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &chatHandler{
		w:     h.w,
		role:  h.role,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *chatHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to logDir/cozychat.log.
// role tags every record with the process role ("server" or "client").
// Server logs also go to stderr; the client keeps stderr clean for the chat
// UI.
func newLogger(logDir, role string, toStderr bool) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "cozychat.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	var w io.Writer = f
	if toStderr {
		w = io.MultiWriter(f, os.Stderr)
	}
	handler := &chatHandler{w: w, role: role}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the chat.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
