package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pagebot/core/bootstrap"
	"github.com/m3rciful/pagebot/core/dispatch"
	"github.com/m3rciful/pagebot/core/health"
	"github.com/m3rciful/pagebot/core/logger"
	"github.com/m3rciful/pagebot/core/nav"
	"github.com/m3rciful/pagebot/core/pages"
	"github.com/m3rciful/pagebot/core/report"
	"github.com/m3rciful/pagebot/core/stats"
	"github.com/m3rciful/pagebot/core/store"
	coretelegram "github.com/m3rciful/pagebot/core/telegram"
	"github.com/m3rciful/pagebot/core/telegram/router"
	"github.com/m3rciful/pagebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// App holds the wired components of a running bot.
type App struct {
	cfg *Config
	db  *sqlx.DB

	Store      *store.Store
	Engine     *nav.Engine
	Dispatcher *dispatch.Dispatcher
	Sender     *sender.Sender

	scheduler *report.Scheduler
	health    *health.Server
}

// New bootstraps infrastructure and wires the navigation pipeline.
func New(cfg *Config) (*App, error) {
	return newApp(cfg, bootstrap.Options{Config: cfg.CoreConfig(), Database: cfg.Database})
}

func newApp(cfg *Config, bo bootstrap.Options) (*App, error) {
	res, err := bootstrap.Run(bo)
	if err != nil {
		return nil, err
	}
	return Wire(cfg, res.DB)
}

// Wire builds the components on top of an open, migrated database.
func Wire(cfg *Config, db *sqlx.DB) (*App, error) {
	st := store.New(db)
	engine := nav.NewEngine(pages.Default(), st, stats.NewAggregator(st))

	a := &App{
		cfg:    cfg,
		db:     db,
		Store:  st,
		Engine: engine,
		Dispatcher: dispatch.New(engine, dispatch.Options{
			Workers:        cfg.Dispatch.Workers,
			QueueSize:      cfg.Dispatch.QueueSize,
			EnqueueTimeout: ms(cfg.Dispatch.EnqueueTimeoutMS),
			HandleTimeout:  ms(cfg.Dispatch.HandleTimeoutMS),
		}),
		Sender: sender.New(sender.Options{
			MaxRetries:   cfg.Sender.MaxRetries,
			RetryBackoff: ms(cfg.Sender.RetryBackoffMS),
			MaxDuration:  ms(cfg.Sender.MaxDurationMS),
		}),
	}

	if cfg.Report.Schedule != "" {
		sch, err := report.NewScheduler(cfg.Report.Schedule, report.NewReporter(st, nil))
		if err != nil {
			a.Dispatcher.Close()
			return nil, err
		}
		a.scheduler = sch
	}
	if cfg.Health.Listen != "" {
		a.health = health.NewServer(cfg.Health.Listen, health.NewRouter(health.Options{
			Store:      st,
			Dispatcher: a.Dispatcher,
			Sender:     a.Sender,
		}))
	}
	return a, nil
}

// TelegramRunOptions describes how the transport should run this app.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), onRateLimited),
		Routes:      router.Routes(router.Options{Dispatcher: a.Dispatcher, Caller: a.Sender}),
		Commands:    coretelegram.MenuCommands(nav.Commands()),
		Call:        a.Sender.Do,
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			return a.Start(ctx)
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			return a.Stop(ctx)
		},
	}, nil
}

// Start launches the optional background services.
func (a *App) Start(ctx context.Context) error {
	if a.scheduler != nil {
		a.scheduler.Start()
	}
	if a.health != nil {
		if err := a.health.Start(); err != nil {
			return err
		}
	}
	logger.Info(ctx, logger.CompApp, "services",
		slog.Bool("report", a.scheduler != nil),
		slog.Bool("health", a.health != nil),
	)
	return nil
}

// Stop drains the dispatcher and releases every resource.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.health != nil {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		errs = append(errs, a.health.Shutdown(sctx))
		cancel()
	}
	a.Dispatcher.Close()
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// onRateLimited clears the button spinner of a throttled callback.
func onRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond()
	}
	return nil
}
