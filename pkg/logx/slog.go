package logx

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler bridges log/slog records into a Logger, so services that
// take *slog.Logger share the same sinks and levels as everything else.
func SlogHandler(l Logger) slog.Handler {
	return &slogHandler{l: l}
}

type slogHandler struct {
	l      Logger
	attrs  []slog.Attr
	prefix string
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.l.Enabled(zerologLevel(level))
}

func (h *slogHandler) Handle(_ context.Context, rec slog.Record) error {
	fields := make([]Field, 0, len(h.attrs)+rec.NumAttrs())
	for _, a := range h.attrs {
		fields = append(fields, attrField(h.prefix, a))
	}
	rec.Attrs(func(a slog.Attr) bool {
		fields = append(fields, attrField(h.prefix, a))
		return true
	})

	switch {
	case rec.Level >= slog.LevelError:
		h.l.Error(rec.Message, fields...)
	case rec.Level >= slog.LevelWarn:
		h.l.Warn(rec.Message, fields...)
	case rec.Level >= slog.LevelInfo:
		h.l.Info(rec.Message, fields...)
	default:
		h.l.Debug(rec.Message, fields...)
	}
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &cp
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = h.prefix + name + "."
	return &cp
}

func attrField(prefix string, a slog.Attr) Field {
	return Any(prefix+a.Key, a.Value.Resolve().Any())
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
