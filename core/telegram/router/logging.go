package router

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/pagebot/core/logger"
	tghelpers "github.com/m3rciful/pagebot/core/telegram/helpers"
	"github.com/m3rciful/pagebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// logHandlerSummary writes the handler.handled line for one update.
func logHandlerSummary(c tele.Context, handlerName string, start time.Time, status, outcome string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	logger.Event(ctx, logger.CompTG, summaryLevel(status), "handler.handled", attrs...)
}

// summaryLevel never samples drops away: skipped updates stay at info and
// queue drops or failures are raised above it.
func summaryLevel(status string) slog.Level {
	switch status {
	case "dropped":
		return slog.LevelWarn
	case "fail":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// logRenderSummary writes the tg.render line once a view was delivered or failed.
func logRenderSummary(c tele.Context, mode string, start time.Time, err error) {
	ctx := tghelpers.BuildContext(c)
	counters := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("mode", mode),
		slog.Int("messages", counters.Messages()),
		slog.Bool("kb", counters.Keyboard),
		slog.Duration("duration", logger.Took(start)),
	}
	if began, ok := c.Get(middleware.UpdateStartKey).(time.Time); ok {
		attrs = append(attrs, slog.Duration("total", logger.Took(began)))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		logger.Warn(ctx, logger.CompTG, "tg.render", attrs...)
		return
	}
	logger.Debug(ctx, logger.CompTG, "tg.render", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return "UNKNOWN_ERROR"
}
