// Package nav maps normalized requests to page views and records one
// interaction per handled event. The engine keeps no per-sender state.
package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/pagebot/core/apperror"
	"github.com/m3rciful/pagebot/core/logger"
	"github.com/m3rciful/pagebot/core/pages"
	"github.com/m3rciful/pagebot/core/stats"
	"github.com/m3rciful/pagebot/core/store"
)

// textLabelRunes caps how much of a free-text message ends up in the log label.
const textLabelRunes = 30

// Recorder is the write side of the interaction store.
type Recorder interface {
	EnsureUser(ctx context.Context, u store.User) error
	RecordInteraction(ctx context.Context, userID int64, action store.ActionType, page string) (store.Interaction, error)
}

// Summarizer produces per-user statistics.
type Summarizer interface {
	Summary(ctx context.Context, userID int64) (stats.Summary, error)
}

// Engine is the navigation state machine.
type Engine struct {
	pages *pages.Registry
	rec   Recorder
	stats Summarizer
}

// NewEngine wires the engine to its collaborators.
func NewEngine(reg *pages.Registry, rec Recorder, sum Summarizer) *Engine {
	return &Engine{pages: reg, rec: rec, stats: sum}
}

// Handle processes one request. The interaction is recorded before the view is
// built, so a failed delivery later on does not lose the log entry.
func (e *Engine) Handle(ctx context.Context, req Request) (View, error) {
	start := time.Now()
	var (
		view View
		err  error
	)
	switch req.Kind {
	case KindCommand:
		view, err = e.handleCommand(ctx, req)
	case KindText:
		view, err = e.handleText(ctx, req)
	case KindButton:
		view, err = e.handleButton(ctx, req)
	default:
		err = apperror.Invalid("kind", fmt.Sprintf("unsupported request kind %d", req.Kind))
	}

	attrs := []slog.Attr{
		slog.String("kind", req.Kind.String()),
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()), slog.String("err_code", errorCode(err)))
		logger.Warn(ctx, logger.CompNav, "nav.handle", attrs...)
		return View{}, err
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, logger.CompNav, "nav.handle", append(attrs, slog.String("mode", view.Mode.String()))...)
	}
	return view, nil
}

func (e *Engine) handleCommand(ctx context.Context, req Request) (View, error) {
	cmd, ok := req.Command()
	if !ok {
		return View{}, apperror.Invalid("command", fmt.Sprintf("unsupported command %q", req.Payload))
	}
	switch cmd {
	case CommandStart:
		if err := e.ensureUser(ctx, req.Sender); err != nil {
			return View{}, err
		}
		if err := e.record(ctx, req.Sender, store.ActionCommand, cmd.Label()); err != nil {
			return View{}, err
		}
		return e.rootView(welcomeText(req.Sender), ModeSend), nil

	case CommandHelp:
		if err := e.record(ctx, req.Sender, store.ActionCommand, cmd.Label()); err != nil {
			return View{}, err
		}
		return View{Text: helpText, Format: pages.FormatPlain, Controls: e.pages.BackControls(), Mode: ModeSend}, nil

	case CommandStats:
		// Recorded first on purpose: the reported total includes this call.
		if err := e.record(ctx, req.Sender, store.ActionCommand, cmd.Label()); err != nil {
			return View{}, err
		}
		sum, err := e.stats.Summary(ctx, req.Sender.ID)
		if err != nil {
			return View{}, fmt.Errorf("stats summary: %w", err)
		}
		return View{Text: statsText(sum), Format: pages.FormatPlain, Controls: e.pages.BackControls(), Mode: ModeSend}, nil
	}
	return View{}, apperror.Invalid("command", fmt.Sprintf("unsupported command %q", req.Payload))
}

func (e *Engine) handleText(ctx context.Context, req Request) (View, error) {
	if err := e.ensureUser(ctx, req.Sender); err != nil {
		return View{}, err
	}
	if err := e.record(ctx, req.Sender, store.ActionTextMessage, TextLabel(req.Payload)); err != nil {
		return View{}, err
	}
	return e.rootView(greetingText(req.Sender), ModeSend), nil
}

func (e *Engine) handleButton(ctx context.Context, req Request) (View, error) {
	// The raw payload is logged even when it names no page.
	if err := e.record(ctx, req.Sender, store.ActionButtonClick, req.Payload); err != nil {
		return View{}, err
	}
	page, err := e.pages.Resolve(pages.ID(req.Payload))
	if err != nil {
		var nf *apperror.NotFoundError
		if !errors.As(err, &nf) {
			return View{}, err
		}
		logger.Warn(ctx, logger.CompNav, "nav.page_fallback",
			slog.String("page", req.Payload),
			slog.String("status", "recovered"),
			slog.String("err", err.Error()),
			slog.String("err_code", nf.Code()),
		)
		page = e.pages.Root()
	}
	return View{Text: page.Content, Format: page.Format, Controls: page.Transitions, Mode: ModeEdit}, nil
}

func (e *Engine) rootView(text string, mode Mode) View {
	root := e.pages.Root()
	return View{Text: text, Format: pages.FormatPlain, Controls: root.Transitions, Mode: mode}
}

func (e *Engine) ensureUser(ctx context.Context, s Sender) error {
	if err := e.rec.EnsureUser(ctx, s.user()); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

// record appends the interaction. A sender the store does not know yet is
// registered and the write retried once; a second failure is returned.
func (e *Engine) record(ctx context.Context, s Sender, action store.ActionType, label string) error {
	_, err := e.rec.RecordInteraction(ctx, s.ID, action, label)
	if err == nil {
		return nil
	}
	var ref *apperror.ReferentialError
	if !errors.As(err, &ref) {
		return fmt.Errorf("record interaction: %w", err)
	}
	logger.Info(ctx, logger.CompNav, "nav.user_recovered",
		slog.String("action", string(action)),
		slog.String("status", "recovered"),
		slog.String("err_code", ref.Code()),
	)
	if err := e.ensureUser(ctx, s); err != nil {
		return err
	}
	if _, err := e.rec.RecordInteraction(ctx, s.ID, action, label); err != nil {
		return fmt.Errorf("record interaction after registering user: %w", err)
	}
	return nil
}

func (s Sender) user() store.User {
	return store.User{ID: s.ID, Username: s.Username, FirstName: s.FirstName, LastName: s.LastName}
}

// TextLabel is the page_visited value for a free-text message.
func TextLabel(text string) string {
	r := []rune(text)
	if len(r) > textLabelRunes {
		r = r[:textLabelRunes]
	}
	return "message: " + string(r)
}

func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return "INTERNAL"
}
