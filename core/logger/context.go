package logger

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type ctxKey int

const (
	fieldsKey ctxKey = iota
	loggerKey
)

// Fields are the correlation values every log line of an update carries.
type Fields struct {
	RID      string
	TraceID  string
	Handler  string
	UpdateID int
	UserID   int64
	ChatID   int64
}

// attrs lists the non-zero fields in log key form.
func (f Fields) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, 6)
	if f.RID != "" {
		out = append(out, slog.String("rid", f.RID))
	}
	if f.TraceID != "" {
		out = append(out, slog.String("trace_id", f.TraceID))
	}
	if f.UserID != 0 {
		out = append(out, slog.Int64("user_id", f.UserID))
	}
	if f.UpdateID != 0 {
		out = append(out, slog.Int64("update_id", int64(f.UpdateID)))
	}
	if f.ChatID != 0 {
		out = append(out, slog.Int64("chat_id", f.ChatID))
	}
	if f.Handler != "" {
		out = append(out, slog.String("handler", f.Handler))
	}
	return out
}

// FieldsFrom returns the correlation fields stored in ctx.
func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	f, _ := ctx.Value(fieldsKey).(Fields)
	return f
}

// withFields stores a modified copy of the fields already in ctx.
func withFields(ctx context.Context, edit func(*Fields)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	f := FieldsFrom(ctx)
	edit(&f)
	return context.WithValue(ctx, fieldsKey, f)
}

// WithLogger stores log in ctx; Event and friends write through it.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored in ctx or the global one.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}

// WithRID sets the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withFields(ctx, func(f *Fields) { f.RID = rid })
}

// WithTrace sets the trace id. An empty id leaves ctx unchanged.
func WithTrace(ctx context.Context, traceID string) context.Context {
	if traceID == "" && ctx != nil {
		return ctx
	}
	return withFields(ctx, func(f *Fields) { f.TraceID = traceID })
}

// WithUpdateMeta sets the update, sender and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withFields(ctx, func(f *Fields) {
		f.UpdateID, f.UserID, f.ChatID = updateID, userID, chatID
	})
}

// WithHandler sets the handler name. An empty name leaves ctx unchanged.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" && ctx != nil {
		return ctx
	}
	return withFields(ctx, func(f *Fields) { f.Handler = handler })
}

// Accessors for single fields of FieldsFrom.
func RIDFrom(ctx context.Context) string     { return FieldsFrom(ctx).RID }
func TraceIDFrom(ctx context.Context) string { return FieldsFrom(ctx).TraceID }
func HandlerFrom(ctx context.Context) string { return FieldsFrom(ctx).Handler }
func UserIDFrom(ctx context.Context) int64   { return FieldsFrom(ctx).UserID }
func ChatIDFrom(ctx context.Context) int64   { return FieldsFrom(ctx).ChatID }
func UpdateIDFrom(ctx context.Context) int   { return FieldsFrom(ctx).UpdateID }

// Sanitize drops control and format runes except tab and newline.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit applies Sanitize and keeps at most max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) > max {
		r = r[:max]
	}
	return string(r)
}

// BuildRID joins the update, chat and sender ids as updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return strconv.Itoa(updateID) + ":" + strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// CompactRID rewrites a BuildRID value as dot-separated base36 segments.
// Anything else is returned trimmed but otherwise unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
