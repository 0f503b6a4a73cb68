// Package cmd starts the page bot process. It reads dotenv files, loads the
// YAML config, wires the navigation app and keeps the Telegram transport
// running until SIGINT or SIGTERM.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/pagebot/core/config"
	"github.com/m3rciful/pagebot/core/logger"
	coretelegram "github.com/m3rciful/pagebot/core/telegram"
)

const defaultConfigEnv = "CONFIG_PATH"

var (
	// ErrNoConfigPath is returned when neither the env var nor the default names a config file.
	ErrNoConfigPath = errors.New("cmd: no config path")
	// ErrNoCoreConfig is returned when the loaded config carries no telegram/logging section.
	ErrNoCoreConfig = errors.New("cmd: config has no core section")
)

// ConfigCarrier is a loaded bot config that embeds the shared core section.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is a wired bot ready to hand its handlers to the transport.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options configure one Run.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string
	// EnvFiles are loaded before the config; missing files are ignored.
	EnvFiles []string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Context overrides the signal-bound context, mainly for tests.
	Context context.Context
}

// configSource tells where the config path came from.
type configSource struct {
	path string
	from string
}

// Run serves the bot until the process is asked to stop.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	startedAt := time.Now()

	envLoaded, err := loadEnvFiles(opts.EnvFiles)
	if err != nil {
		return fmt.Errorf("cmd: env file: %w", err)
	}
	src, err := resolveConfigPath(opts)
	if err != nil {
		return err
	}

	cfg, err := opts.LoadConfig(src.path)
	if err != nil {
		return fmt.Errorf("cmd: load %s: %w", src.path, err)
	}
	core := cfg.CoreConfig()
	if core == nil {
		return ErrNoCoreConfig
	}

	bot, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			// The structured logger is gone at this point.
			log.Printf("pagebot: flush logs: %v", err)
		}
	}()

	// Logging is only configured after bootstrap, so the config line waits until now.
	logger.Info(context.Background(), logger.CompApp, "config.load",
		slog.String("path", src.path),
		slog.String("from", src.from),
		slog.Int("env_files", envLoaded),
		slog.String("run_mode", core.Telegram.RunMode),
	)

	runOpts, err := bot.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	withLifecycleLogs(&runOpts, core.Telegram.RunMode, startedAt)

	ctx := opts.Context
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
	}
	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

// withLifecycleLogs wraps the start/stop hooks with the ready and shutdown lines.
func withLifecycleLogs(runOpts *coretelegram.RunOptions, runMode string, startedAt time.Time) {
	var readyAt time.Time
	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		readyAt = time.Now()
		attrs := []slog.Attr{
			slog.String("status", "ok"),
			slog.String("run_mode", runMode),
			slog.Duration("startup_duration", logger.RoundMS(readyAt.Sub(startedAt))),
		}
		if rt.Bot != nil && rt.Bot.Me != nil {
			attrs = append(attrs, slog.String("bot", rt.Bot.Me.Username))
		}
		logger.Info(ctx, logger.CompApp, "ready", attrs...)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		attrs := []slog.Attr{slog.String("run_mode", runMode)}
		if !readyAt.IsZero() {
			attrs = append(attrs, slog.Duration("uptime", logger.RoundMS(time.Since(readyAt))))
		}
		logger.Info(ctx, logger.CompApp, "shutdown", attrs...)
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}
}

func resolveConfigPath(opts Options) (configSource, error) {
	env := opts.ConfigEnvVar
	if env == "" {
		env = defaultConfigEnv
	}
	if p := os.Getenv(env); p != "" {
		return configSource{path: p, from: "env:" + env}, nil
	}
	if opts.DefaultConfigPath != "" {
		return configSource{path: opts.DefaultConfigPath, from: "default"}, nil
	}
	return configSource{}, fmt.Errorf("%w: set %s", ErrNoConfigPath, env)
}

// loadEnvFiles fills unset environment variables from dotenv files and
// reports how many files were read.
func loadEnvFiles(paths []string) (int, error) {
	loaded := 0
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("%s: %w", p, err)
		}
		loaded++
	}
	return loaded, nil
}
