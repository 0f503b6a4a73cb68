// Package report logs a periodic activity summary on a cron schedule.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/pagebot/core/logger"
)

// Window is the period covered by one daily report.
const Window = 24 * time.Hour

// Source provides the counters a report needs.
type Source interface {
	CountUsers(ctx context.Context) (int, error)
	CountInteractionsSince(ctx context.Context, since time.Time) (int, error)
}

// Daily is one report.
type Daily struct {
	Since        time.Time
	Users        int
	Interactions int
}

// Reporter builds and logs reports.
type Reporter struct {
	src Source
	now func() time.Time
}

// NewReporter returns a Reporter reading from src. A nil now uses time.Now.
func NewReporter(src Source, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{src: src, now: now}
}

// Run computes the report for the last Window and logs report.daily.
func (r *Reporter) Run(ctx context.Context) (Daily, error) {
	start := time.Now()
	d := Daily{Since: r.now().UTC().Add(-Window)}

	users, err := r.src.CountUsers(ctx)
	if err != nil {
		return r.fail(ctx, start, fmt.Errorf("count users: %w", err))
	}
	interactions, err := r.src.CountInteractionsSince(ctx, d.Since)
	if err != nil {
		return r.fail(ctx, start, fmt.Errorf("count interactions: %w", err))
	}
	d.Users, d.Interactions = users, interactions

	logger.Info(ctx, logger.CompReport, "report.daily",
		slog.String("status", "ok"),
		slog.Int("users", d.Users),
		slog.Int("interactions", d.Interactions),
		slog.Time("since", d.Since),
		slog.Duration("duration", logger.Took(start)),
	)
	return d, nil
}

func (r *Reporter) fail(ctx context.Context, start time.Time, err error) (Daily, error) {
	logger.Error(ctx, logger.CompReport, "report.daily",
		append(logger.ErrAttrs(err), slog.Duration("duration", logger.Took(start)))...)
	return Daily{}, err
}

// Scheduler runs a Reporter on a cron schedule evaluated in UTC.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	spec   string
}

// NewScheduler validates spec (standard five fields or a descriptor such as
// "@daily") and registers the report job.
func NewScheduler(spec string, rep *Reporter) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("report: invalid schedule %q: %w", spec, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		spec:   spec,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		_, _ = rep.Run(s.ctx)
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("report: schedule job: %w", err)
	}
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	next := s.Next()
	logger.Info(s.ctx, logger.CompReport, "report.schedule",
		slog.String("status", "ok"),
		slog.String("schedule", s.spec),
		slog.Time("next", next),
	)
}

// Next returns the next scheduled run, or zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop waits for a running job and cancels its context.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
}
