package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler fans a record out to several slog handlers, letting a logger
// write to the console and a log file at once.
type MultiHandler struct {
	targets []slog.Handler
}

// NewMultiHandler wraps the given handlers into one.
func NewMultiHandler(targets ...slog.Handler) *MultiHandler {
	return &MultiHandler{targets: targets}
}

// Enabled reports whether at least one target accepts the level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, t := range m.targets {
		if t.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every target that accepts its level. A
// failing target does not stop delivery to the others; the errors are
// joined.
func (m *MultiHandler) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	for _, t := range m.targets {
		if !t.Enabled(ctx, rec.Level) {
			continue
		}
		if err := t.Handle(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs applies the attributes to every target.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.targets))
	for i, t := range m.targets {
		next[i] = t.WithAttrs(attrs)
	}
	return &MultiHandler{targets: next}
}

// WithGroup applies the group to every target.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.targets))
	for i, t := range m.targets {
		next[i] = t.WithGroup(name)
	}
	return &MultiHandler{targets: next}
}
