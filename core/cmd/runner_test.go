package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/pagebot/core/config"
	"github.com/m3rciful/pagebot/core/logger"
	coretelegram "github.com/m3rciful/pagebot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct {
	opts coretelegram.RunOptions
	err  error
}

func (a app) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, a.err }

func TestRunWiresHooks(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PAGEBOT_RUNNER_TEST=from-dotenv\n"), 0o600))
	t.Setenv("PAGEBOT_RUNNER_CONFIG", "custom.yaml")
	t.Cleanup(func() { _ = os.Unsetenv("PAGEBOT_RUNNER_TEST") })

	var (
		loadedPath string
		started    bool
		stopped    bool
		shutdown   bool
	)
	err := Run(Options{
		ConfigEnvVar: "PAGEBOT_RUNNER_CONFIG",
		EnvFiles:     []string{envPath, filepath.Join(dir, "missing.env")},
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedPath = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			return app{opts: coretelegram.RunOptions{
				OnStart: func(context.Context, coretelegram.Runtime) error { started = true; return nil },
				OnStop:  func(context.Context, coretelegram.Runtime) error { stopped = true; return nil },
			}}, nil
		},
		ShutdownLogger: func() error { shutdown = true; return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
		Context: context.Background(),
	})
	require.NoError(t, err)
	assert.Equal(t, "custom.yaml", loadedPath)
	assert.Equal(t, "from-dotenv", os.Getenv("PAGEBOT_RUNNER_TEST"))
	assert.True(t, started)
	assert.True(t, stopped)
	assert.True(t, shutdown)
}

func TestRunErrors(t *testing.T) {
	assert.Error(t, Run(Options{}))
	t.Setenv(defaultConfigEnv, "")

	load := func(string) (ConfigCarrier, error) { return carrier{cfg: &coreconfig.Config{}}, nil }
	boom := errors.New("boom")

	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return nil, boom },
		Bootstrap:         func(ConfigCarrier) (TelegramApp, error) { return app{}, nil },
	})
	assert.ErrorIs(t, err, boom)

	err = Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return carrier{}, nil },
		Bootstrap:         func(ConfigCarrier) (TelegramApp, error) { return app{}, nil },
	})
	assert.ErrorIs(t, err, ErrNoCoreConfig)

	err = Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        load,
		Bootstrap:         func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
	})
	assert.ErrorIs(t, err, boom)

	err = Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        load,
		Bootstrap:         func(ConfigCarrier) (TelegramApp, error) { return app{err: boom}, nil },
		ShutdownLogger:    func() error { return nil },
	})
	assert.ErrorIs(t, err, boom)
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("PAGEBOT_RUNNER_CONFIG", "")

	_, err := resolveConfigPath(Options{ConfigEnvVar: "PAGEBOT_RUNNER_CONFIG"})
	require.ErrorIs(t, err, ErrNoConfigPath)
	assert.ErrorContains(t, err, "PAGEBOT_RUNNER_CONFIG")

	src, err := resolveConfigPath(Options{ConfigEnvVar: "PAGEBOT_RUNNER_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, configSource{path: "config.yaml", from: "default"}, src)

	t.Setenv("PAGEBOT_RUNNER_CONFIG", "/etc/pagebot.yaml")
	src, err = resolveConfigPath(Options{ConfigEnvVar: "PAGEBOT_RUNNER_CONFIG", DefaultConfigPath: "config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, configSource{path: "/etc/pagebot.yaml", from: "env:PAGEBOT_RUNNER_CONFIG"}, src)
}

func TestLoadEnvFilesCountsReadFiles(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PAGEBOT_RUNNER_COUNT=1\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PAGEBOT_RUNNER_COUNT") })

	n, err := loadEnvFiles([]string{filepath.Join(dir, "absent.env"), envPath})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLifecycleLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logger.WithLogger(context.Background(), slog.New(slog.NewJSONHandler(buf, nil)))

	stopped := false
	runOpts := coretelegram.RunOptions{
		OnStop: func(context.Context, coretelegram.Runtime) error { stopped = true; return nil },
	}
	withLifecycleLogs(&runOpts, coreconfig.RunModeLongpoll, time.Now())

	rt := coretelegram.Runtime{Bot: &tele.Bot{Me: &tele.User{Username: "page_bot"}}}
	require.NoError(t, runOpts.OnStart(ctx, rt))
	require.NoError(t, runOpts.OnStop(ctx, rt))
	assert.True(t, stopped)

	out := buf.String()
	assert.Contains(t, out, `"event":"ready"`)
	assert.Contains(t, out, `"bot":"page_bot"`)
	assert.Contains(t, out, `"run_mode":"longpoll"`)
	assert.Contains(t, out, `"event":"shutdown"`)
	assert.Contains(t, out, `"uptime"`)
}

func TestLifecycleLogsStopOnFailedStart(t *testing.T) {
	boom := errors.New("getMe failed")
	runOpts := coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { return boom },
	}
	withLifecycleLogs(&runOpts, coreconfig.RunModeWebhook, time.Now())
	assert.ErrorIs(t, runOpts.OnStart(context.Background(), coretelegram.Runtime{}), boom)
	assert.NoError(t, runOpts.OnStop(context.Background(), coretelegram.Runtime{}))
}
