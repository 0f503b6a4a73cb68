// Package dispatch classifies inbound events and runs them through the
// navigation engine on sharded workers. Events of one sender always land on
// the same shard, so they are handled in arrival order.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/pagebot/core/logger"
	"github.com/m3rciful/pagebot/core/nav"
)

var (
	// ErrQueueClosed is returned when an event arrives after Close.
	ErrQueueClosed = errors.New("dispatch: queue closed")
	// ErrQueueFull is returned when a shard stays full for the whole enqueue timeout.
	ErrQueueFull = errors.New("dispatch: queue full")
)

// Handler turns a request into a view.
type Handler interface {
	Handle(ctx context.Context, req nav.Request) (nav.View, error)
}

// Renderer delivers a view back to the sender of one event.
type Renderer interface {
	Render(ctx context.Context, view nav.View) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, view nav.View) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, view nav.View) error {
	return f(ctx, view)
}

// Options controls the worker pool.
type Options struct {
	// Workers is the number of shards, each served by one goroutine.
	Workers int
	// QueueSize is the buffer of every shard.
	QueueSize int
	// EnqueueTimeout bounds how long Dispatch waits for room in a full shard.
	EnqueueTimeout time.Duration
	// HandleTimeout bounds handling plus rendering of a single event.
	HandleTimeout time.Duration
}

// Stats is a snapshot of the dispatcher counters.
type Stats struct {
	Workers      int   `json:"workers"`
	Queued       int   `json:"queued"`
	Processed    int64 `json:"processed"`
	Dropped      int64 `json:"dropped"`
	Failed       int64 `json:"failed"`
	RenderFailed int64 `json:"render_failed"`
}

type job struct {
	ctx      context.Context
	req      nav.Request
	renderer Renderer
	queuedAt time.Time
}

// Dispatcher fans events out to per-sender FIFO shards.
type Dispatcher struct {
	handler Handler
	opts    Options
	shards  []chan job

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup

	processed    atomic.Int64
	dropped      atomic.Int64
	failed       atomic.Int64
	renderFailed atomic.Int64
}

// New starts the workers. Zero options fall back to defaults.
func New(h Handler, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 2 * time.Second
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = 15 * time.Second
	}

	d := &Dispatcher{
		handler: h,
		opts:    opts,
		shards:  make([]chan job, opts.Workers),
	}
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, opts.QueueSize)
		go d.worker(i, d.shards[i])
	}
	logger.Info(context.Background(), logger.CompDispatch, "dispatch.start",
		slog.Int("workers", opts.Workers),
		slog.Int("queue", opts.QueueSize),
	)
	return d
}

// dropLevel keeps captionless media at info; every other drop is a warning.
func dropLevel(ev Event) slog.Level {
	if ev.Callback == nil && ev.Message != nil && strings.TrimSpace(ev.Message.Text) == "" {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

// Dispatch classifies ev and queues it on the sender's shard. Unclassifiable
// events are logged, counted as dropped and reported through the returned error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, r Renderer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := Classify(ev)
	if err != nil {
		d.dropped.Add(1)
		logger.Event(ctx, logger.CompDispatch, dropLevel(ev), "dispatch.drop",
			slog.String("status", "dropped"),
			slog.String("cause", err.Error()),
			slog.String("err_code", "CLASSIFICATION"),
		)
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return ErrQueueClosed
	}

	shard := d.shardFor(req.Sender.ID)
	j := job{ctx: context.WithoutCancel(ctx), req: req, renderer: r, queuedAt: time.Now()}
	select {
	case d.shards[shard] <- j:
		return nil
	default:
	}

	timer := time.NewTimer(d.opts.EnqueueTimeout)
	defer timer.Stop()
	select {
	case d.shards[shard] <- j:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}
	d.dropped.Add(1)
	logger.Warn(ctx, logger.CompDispatch, "dispatch.queue_full",
		slog.String("status", "dropped"),
		slog.Int("shard", shard),
		slog.String("kind", req.Kind.String()),
	)
	return ErrQueueFull
}

// Close stops accepting events, drains every shard and waits for the workers.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, ch := range d.shards {
			close(ch)
		}
		d.mu.Unlock()
		d.wg.Wait()

		st := d.Stats()
		logger.Info(context.Background(), logger.CompDispatch, "dispatch.stop",
			slog.Int64("processed", st.Processed),
			slog.Int64("dropped", st.Dropped),
			slog.Int64("failed", st.Failed),
		)
	})
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	queued := 0
	for _, ch := range d.shards {
		queued += len(ch)
	}
	return Stats{
		Workers:      len(d.shards),
		Queued:       queued,
		Processed:    d.processed.Load(),
		Dropped:      d.dropped.Load(),
		Failed:       d.failed.Load(),
		RenderFailed: d.renderFailed.Load(),
	}
}

func (d *Dispatcher) shardFor(senderID int64) int {
	n := int64(len(d.shards))
	s := senderID % n
	if s < 0 {
		s += n
	}
	return int(s)
}

func (d *Dispatcher) worker(shard int, jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.run(shard, j)
	}
}

func (d *Dispatcher) run(shard int, j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.HandleTimeout)
	defer cancel()
	ctx = logger.WithTrace(ctx, uuid.NewString())

	start := time.Now()
	base := []slog.Attr{
		slog.Int("shard", shard),
		slog.String("kind", j.req.Kind.String()),
	}

	defer func() {
		if rec := recover(); rec != nil {
			d.failed.Add(1)
			logger.Error(ctx, logger.CompDispatch, "dispatch.panic",
				append(base, slog.String("status", "fail"), slog.Any("cause", rec))...)
		}
	}()

	view, err := d.handler.Handle(ctx, j.req)
	if err != nil {
		d.failed.Add(1)
		logger.Error(ctx, logger.CompDispatch, "dispatch.handle",
			append(base,
				slog.String("status", "dropped"),
				slog.String("err", err.Error()),
				slog.String("err_code", errorCode(err)),
				slog.Duration("duration", logger.Took(start)),
			)...)
		return
	}

	if j.renderer != nil {
		if err := j.renderer.Render(ctx, view); err != nil {
			// The interaction is already recorded and stays.
			d.renderFailed.Add(1)
			logger.Warn(ctx, logger.CompDispatch, "dispatch.render",
				append(append(base, logger.ErrAttrs(err)...),
					slog.Duration("duration", logger.Took(start)),
				)...)
		}
	}
	d.processed.Add(1)
	logger.Debug(ctx, logger.CompDispatch, "dispatch.done",
		append(base,
			slog.String("status", "ok"),
			slog.Duration("queue_wait", logger.RoundMS(start.Sub(j.queuedAt))),
			slog.Duration("duration", logger.Took(start)),
		)...)
}

func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "TIMEOUT"
	}
	return "INTERNAL"
}
