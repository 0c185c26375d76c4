package ui

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler fans slog records out to several handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler returns a handler writing every record to each of hs.
func NewMultiHandler(hs ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: hs}
}

// Enabled reports whether any handler accepts level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: hs}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: hs}
}

// EventMessage is the log message under which engine events are recorded.
const EventMessage = "xfs-irecover.event"

// LogEvent records ev at debug level. Zero-valued fields are left out.
func LogEvent(ctx context.Context, l *slog.Logger, ev Event) {
	attrs := []slog.Attr{slog.String("type", ev.Type.String())}
	if ev.Inode != 0 {
		attrs = append(attrs, slog.Uint64("inode", ev.Inode))
	}
	if ev.Size != 0 {
		attrs = append(attrs, slog.Uint64("size", ev.Size))
	}
	if ev.Written != 0 {
		attrs = append(attrs, slog.Int64("written", ev.Written))
	}
	if ev.Holes != 0 {
		attrs = append(attrs, slog.Int64("holes", ev.Holes))
	}
	if ev.Type == Progress || ev.Type == ScanStarted || ev.Type == ScanComplete {
		attrs = append(attrs, slog.Uint64("current", ev.Current), slog.Uint64("stop", ev.Stop))
	}
	if ev.Type == Progress {
		attrs = append(attrs, slog.Float64("rate", ev.Rate), slog.Duration("eta", ev.ETA))
	}
	if ev.Type == ScanComplete {
		attrs = append(attrs, slog.Int64("recovered", ev.Recovered))
	}
	if ev.Error != nil {
		attrs = append(attrs, slog.String("error", ev.Error.Error()))
	}
	l.LogAttrs(ctx, slog.LevelDebug, EventMessage, attrs...)
}
