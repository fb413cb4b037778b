package logging

import (
	"context"
	"log/slog"
	"regexp"
)

// Brief and draft text flows through log records, and raw briefs can carry
// contact details. These mirror the input guardrail patterns.
var (
	emailRedact = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRedact = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
	cardRedact  = regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`)
)

const redactedPlaceholder = "[REDACTED]"

// RedactingHandler is a slog.Handler wrapper that replaces PII-shaped
// substrings in string attribute values before records are written.
type RedactingHandler struct {
	inner slog.Handler
}

// NewRedactingHandler wraps a handler with PII redaction.
func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, Redact(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(redacted)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

// Redact replaces PII-shaped substrings in s.
func Redact(s string) string {
	s = emailRedact.ReplaceAllString(s, redactedPlaceholder)
	s = cardRedact.ReplaceAllString(s, redactedPlaceholder)
	s = phoneRedact.ReplaceAllString(s, redactedPlaceholder)
	return s
}

func redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		redacted := make([]any, 0, len(group))
		for _, ga := range group {
			redacted = append(redacted, redactAttr(ga))
		}
		return slog.Group(a.Key, redacted...)
	}
	return a
}
