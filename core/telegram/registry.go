package telegram

import (
	"context"
	"log/slog"

	"github.com/m3rciful/pagebot/core/logger"
	"github.com/m3rciful/pagebot/core/nav"

	tele "gopkg.in/telebot.v4"
)

// CommandSetter is the part of *tele.Bot used to publish the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// MenuCommands converts the engine's command list into Bot API commands.
func MenuCommands(infos []nav.CommandInfo) []tele.Command {
	cmds := make([]tele.Command, 0, len(infos))
	for _, info := range infos {
		if info.Command == "" || info.Description == "" {
			logger.Warn(context.Background(), logger.CompWire, "register.command.skip",
				slog.String("label", string(info.Command)),
				slog.String("cause", "invalid"),
			)
			continue
		}
		cmds = append(cmds, tele.Command{Text: string(info.Command), Description: info.Description})
	}
	return cmds
}

// SetupCommands publishes the command menu through do, which wraps the
// outbound call with retries.
func SetupCommands(ctx context.Context, bot CommandSetter, cmds []tele.Command, do func(ctx context.Context, action, endpoint string, call func() error) error) error {
	if do == nil {
		do = func(_ context.Context, _, _ string, call func() error) error { return call() }
	}
	err := do(ctx, "commands.set", "setMyCommands", func() error {
		return bot.SetCommands(cmds)
	})
	if err != nil {
		logger.Error(ctx, logger.CompWire, "register.commands", logger.ErrAttrs(err)...)
		return err
	}
	logger.Info(ctx, logger.CompWire, "register.commands",
		slog.String("status", "ok"),
		slog.Int("count", len(cmds)),
	)
	return nil
}
