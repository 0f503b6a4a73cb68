package logger

import (
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Status maps an error to the status field value.
func Status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// Took returns rounded duration since start.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds duration to the nearest millisecond.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// ListAttrs describes values as <prefix>_total, <prefix>_preview with at most
// limit entries, and <prefix>_truncated when entries were left out.
func ListAttrs(prefix string, values []string, limit int) []slog.Attr {
	attrs := []slog.Attr{slog.Int(prefix+"_total", len(values))}
	shown := values
	if limit >= 0 && len(values) > limit {
		shown = values[:limit]
	}
	if len(shown) > 0 {
		attrs = append(attrs, slog.String(prefix+"_preview", strings.Join(shown, ",")))
	}
	if len(shown) < len(values) {
		attrs = append(attrs, slog.Bool(prefix+"_truncated", true))
	}
	return attrs
}

// ErrAttrs returns the failure attributes for err: status, a sanitized
// message and err_code when the error carries one. Nil yields status=ok.
func ErrAttrs(err error) []slog.Attr {
	if err == nil {
		return []slog.Attr{slog.String("status", "ok")}
	}
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.String("err", SanitizeLimit(err.Error(), 256)),
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		attrs = append(attrs, slog.String("err_code", coded.Code()))
	}
	return attrs
}
