package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/pagebot/core/logger"
	tghelpers "github.com/m3rciful/pagebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// maxStackBytes bounds the stack attached to a tg.panic line.
const maxStackBytes = 4096

// ErrPanic marks errors produced from a recovered handler panic.
var ErrPanic = errors.New("telegram: handler panic")

// RecoverMiddleware turns a handler panic into an ErrPanic error so the poller keeps running.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()
			if len(stack) > maxStackBytes {
				stack = stack[:maxStackBytes]
			}
			logger.Error(tghelpers.BuildContext(c), logger.CompTG, "tg.panic",
				slog.String("status", "fail"),
				slog.String("update", updateKind(c.Update())),
				slog.Any("err", r),
				slog.String("stack", string(stack)),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}()
		return next(c)
	}
}
