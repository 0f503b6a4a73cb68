package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pagebot/core/nav"
)

type fakeSetter struct {
	got []tele.Command
	err error
}

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	for _, o := range opts {
		if cmds, ok := o.([]tele.Command); ok {
			f.got = cmds
		}
	}
	return f.err
}

func TestMenuCommands(t *testing.T) {
	cmds := MenuCommands(nav.Commands())
	require.Len(t, cmds, 3)
	assert.Equal(t, "start", cmds[0].Text)
	assert.Equal(t, "help", cmds[1].Text)
	assert.Equal(t, "stats", cmds[2].Text)
	for _, c := range cmds {
		assert.NotEmpty(t, c.Description)
	}
}

func TestMenuCommandsSkipsInvalid(t *testing.T) {
	cmds := MenuCommands([]nav.CommandInfo{{Command: "start"}, {Command: "help", Description: "Help"}})
	require.Len(t, cmds, 1)
	assert.Equal(t, "help", cmds[0].Text)
}

func TestSetupCommands(t *testing.T) {
	setter := &fakeSetter{}
	cmds := MenuCommands(nav.Commands())
	var action string
	do := func(_ context.Context, a, _ string, call func() error) error {
		action = a
		return call()
	}
	require.NoError(t, SetupCommands(context.Background(), setter, cmds, do))
	assert.Equal(t, cmds, setter.got)
	assert.Equal(t, "commands.set", action)

	setter.err = errors.New("Unauthorized")
	assert.Error(t, SetupCommands(context.Background(), setter, cmds, nil))
}
