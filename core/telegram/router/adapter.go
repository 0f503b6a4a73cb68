// Package router feeds Telegram updates into the event dispatcher and renders
// the resulting views back through the Bot API.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/pagebot/core/apperror"
	"github.com/m3rciful/pagebot/core/dispatch"
	"github.com/m3rciful/pagebot/core/logger"
	"github.com/m3rciful/pagebot/core/nav"
	"github.com/m3rciful/pagebot/core/pages"
	tg "github.com/m3rciful/pagebot/core/telegram"
	tghelpers "github.com/m3rciful/pagebot/core/telegram/helpers"
	"github.com/m3rciful/pagebot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Dispatcher accepts transport-neutral events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev dispatch.Event, r dispatch.Renderer) error
}

// Caller runs one outbound Bot API call, usually with retries.
type Caller interface {
	Do(ctx context.Context, action, endpoint string, call func() error) error
}

type directCaller struct{}

func (directCaller) Do(_ context.Context, _, _ string, call func() error) error { return call() }

// Options wires the adapter.
type Options struct {
	Dispatcher Dispatcher
	// Caller wraps outbound calls; nil calls the Bot API directly.
	Caller Caller
}

type adapter struct {
	dispatcher Dispatcher
	caller     Caller
}

// Routes binds text, callback and media updates to a single adapter.
func Routes(opts Options) []tg.Route {
	a := &adapter{dispatcher: opts.Dispatcher, caller: opts.Caller}
	if a.caller == nil {
		a.caller = directCaller{}
	}
	logger.Info(context.Background(), logger.CompWire, "tg.wire",
		slog.String("status", "ok"),
		slog.Int("count", 3),
	)
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: a.handle},
		{Endpoint: tele.OnCallback, Handler: a.handle},
		{Endpoint: tele.OnMedia, Handler: a.handle},
	}
}

func (a *adapter) handle(c tele.Context) error {
	start := time.Now()
	ev := EventFrom(c)
	name := handlerName(ev)
	ctx := tghelpers.WithHandler(c, name)

	if ev.Callback != nil {
		// Acknowledge first so the client stops its spinner even if the queue is slow.
		if err := a.caller.Do(ctx, "callback.ack", "answerCallbackQuery", func() error { return c.Respond() }); err != nil {
			logger.Warn(ctx, logger.CompTG, "callback.ack",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}

	err := a.dispatcher.Dispatch(ctx, ev, &viewRenderer{c: c, caller: a.caller})
	switch {
	case err == nil:
		logHandlerSummary(c, name, start, "ok", "ok", nil)
		return nil
	case errors.Is(err, apperror.ErrClassification):
		logHandlerSummary(c, name, start, "skip", "dropped", err)
		return nil
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrQueueClosed):
		logHandlerSummary(c, name, start, "dropped", "dropped", err)
		return nil
	}
	logHandlerSummary(c, name, start, "fail", "fail", err)
	return err
}

// EventFrom converts a telebot update into a dispatcher event.
func EventFrom(c tele.Context) dispatch.Event {
	upd := c.Update()
	ev := dispatch.Event{UpdateID: upd.ID}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}
	if u := c.Sender(); u != nil {
		ev.Sender = nav.Sender{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
	}
	if cb := upd.Callback; cb != nil {
		data := cb.Data
		if cb.Unique != "" {
			data = "\f" + cb.Unique + "|" + cb.Data
		}
		ev.Callback = &dispatch.Callback{ID: cb.ID, Data: data}
		return ev
	}
	if m := upd.Message; m != nil {
		ev.Message = &dispatch.Message{Text: m.Text}
	}
	return ev
}

func handlerName(ev dispatch.Event) string {
	switch {
	case ev.Callback != nil:
		return "callback." + normalizeHandlerName(dispatch.ParseCallbackData(ev.Callback.Data))
	case ev.Message != nil && strings.HasPrefix(strings.TrimSpace(ev.Message.Text), "/") && dispatch.CommandName(ev.Message.Text) != "":
		return "command." + normalizeHandlerName(dispatch.CommandName(ev.Message.Text))
	case ev.Message != nil && strings.TrimSpace(ev.Message.Text) != "":
		return "text"
	}
	return "media"
}

// viewRenderer delivers a view to the chat of the update it was built for.
type viewRenderer struct {
	c      tele.Context
	caller Caller
}

func (r *viewRenderer) Render(ctx context.Context, v nav.View) error {
	start := time.Now()
	opts := SendOptions(v)

	if v.Mode == nav.ModeEdit && r.c.Callback() != nil {
		err := r.caller.Do(ctx, "edit.view", "editMessageText", func() error {
			return ignoreNotModified(r.c.Edit(v.Text, opts))
		})
		logRenderSummary(r.c, nav.ModeEdit.String(), start, err)
		return err
	}

	err := r.caller.Do(ctx, "send.view", "sendMessage", func() error {
		return r.c.Send(v.Text, opts)
	})
	logRenderSummary(r.c, nav.ModeSend.String(), start, err)
	return err
}

// SendOptions maps a view's format and controls onto Bot API options.
func SendOptions(v nav.View) *tele.SendOptions {
	opts := &tele.SendOptions{ReplyMarkup: keyboard.FromControls(v.Controls)}
	if v.Format == pages.FormatMarkdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	return opts
}

// ignoreNotModified treats re-rendering the page already on screen as success.
func ignoreNotModified(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tele.ErrSameMessageContent) || strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}
