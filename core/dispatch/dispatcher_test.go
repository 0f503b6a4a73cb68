package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pagebot/core/apperror"
	"github.com/m3rciful/pagebot/core/logger"
	"github.com/m3rciful/pagebot/core/nav"
)

type recordingHandler struct {
	mu    sync.Mutex
	seen  map[int64][]string
	fail  map[string]error
	delay time.Duration
	block chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{seen: map[int64][]string{}, fail: map[string]error{}}
}

func (h *recordingHandler) Handle(ctx context.Context, req nav.Request) (nav.View, error) {
	if h.block != nil {
		<-h.block
	}
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	if logger.TraceIDFrom(ctx) == "" {
		return nav.View{}, errors.New("missing trace id")
	}
	h.mu.Lock()
	h.seen[req.Sender.ID] = append(h.seen[req.Sender.ID], req.Payload)
	h.mu.Unlock()
	if err := h.fail[req.Payload]; err != nil {
		return nav.View{}, err
	}
	return nav.View{Text: req.Payload, Mode: nav.ModeSend}, nil
}

func (h *recordingHandler) payloads(id int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.seen[id]...)
}

func textEvent(id int64, text string) Event {
	return Event{Sender: nav.Sender{ID: id}, Message: &Message{Text: text}}
}

func TestDispatchPreservesPerSenderOrder(t *testing.T) {
	h := newRecordingHandler()
	d := New(h, Options{Workers: 3, QueueSize: 256})

	const perSender = 40
	senders := []int64{1, 2, 3, 4, 5}
	var wg sync.WaitGroup
	for _, id := range senders {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				assert.NoError(t, d.Dispatch(context.Background(), textEvent(id, fmt.Sprintf("m%02d", i)), nil))
			}
		}(id)
	}
	wg.Wait()
	d.Close()

	for _, id := range senders {
		got := h.payloads(id)
		require.Len(t, got, perSender)
		for i, p := range got {
			assert.Equal(t, fmt.Sprintf("m%02d", i), p, "sender %d", id)
		}
	}
	st := d.Stats()
	assert.EqualValues(t, len(senders)*perSender, st.Processed)
	assert.Zero(t, st.Dropped)
	assert.Zero(t, st.Queued)
}

func TestDispatchRendersView(t *testing.T) {
	h := newRecordingHandler()
	d := New(h, Options{Workers: 1})

	got := make(chan nav.View, 1)
	r := RendererFunc(func(_ context.Context, v nav.View) error {
		got <- v
		return nil
	})
	require.NoError(t, d.Dispatch(context.Background(), textEvent(9, "hello"), r))

	select {
	case v := <-got:
		assert.Equal(t, "hello", v.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("view was not rendered")
	}
	d.Close()
}

func TestDispatchDropsUnclassifiable(t *testing.T) {
	h := newRecordingHandler()
	d := New(h, Options{Workers: 1})
	defer d.Close()

	err := d.Dispatch(context.Background(), Event{Sender: nav.Sender{ID: 4}, Message: &Message{}}, nil)
	require.ErrorIs(t, err, apperror.ErrClassification)
	assert.EqualValues(t, 1, d.Stats().Dropped)
	assert.Empty(t, h.payloads(4))
}

type levelRecorder struct {
	mu     sync.Mutex
	events map[string]slog.Level
}

func (r *levelRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *levelRecorder) Handle(_ context.Context, rec slog.Record) error {
	rec.Attrs(func(a slog.Attr) bool {
		if a.Key == "event" {
			r.mu.Lock()
			r.events[a.Value.String()] = rec.Level
			r.mu.Unlock()
			return false
		}
		return true
	})
	return nil
}

func (r *levelRecorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *levelRecorder) WithGroup(string) slog.Handler      { return r }

func (r *levelRecorder) level(event string) (slog.Level, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lvl, ok := r.events[event]
	return lvl, ok
}

func TestDispatchDropLogLevel(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want slog.Level
	}{
		{name: "media without caption", ev: Event{Sender: nav.Sender{ID: 4}, Message: &Message{}}, want: slog.LevelInfo},
		{name: "unknown command", ev: textEvent(4, "/settings"), want: slog.LevelWarn},
		{name: "empty callback", ev: Event{Sender: nav.Sender{ID: 4}, Callback: &Callback{ID: "1"}}, want: slog.LevelWarn},
		{name: "no sender", ev: Event{Message: &Message{Text: "hi"}}, want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &levelRecorder{events: map[string]slog.Level{}}
			ctx := logger.WithLogger(context.Background(), slog.New(rec))
			d := New(newRecordingHandler(), Options{Workers: 1})
			defer d.Close()

			require.ErrorIs(t, d.Dispatch(ctx, tt.ev, nil), apperror.ErrClassification)
			lvl, ok := rec.level("dispatch.drop")
			require.True(t, ok)
			assert.Equal(t, tt.want, lvl)
		})
	}
}

func TestDispatchCountsFailures(t *testing.T) {
	h := newRecordingHandler()
	h.fail["boom"] = apperror.Storage("record_interaction", errors.New("disk full"))
	d := New(h, Options{Workers: 2})

	renderErr := RendererFunc(func(context.Context, nav.View) error { return errors.New("chat not found") })
	require.NoError(t, d.Dispatch(context.Background(), textEvent(1, "boom"), nil))
	require.NoError(t, d.Dispatch(context.Background(), textEvent(2, "fine"), renderErr))
	require.NoError(t, d.Dispatch(context.Background(), textEvent(3, "fine"), nil))
	d.Close()

	st := d.Stats()
	assert.EqualValues(t, 1, st.Failed)
	assert.EqualValues(t, 1, st.RenderFailed)
	assert.EqualValues(t, 2, st.Processed)
}

func TestDispatchAfterClose(t *testing.T) {
	d := New(newRecordingHandler(), Options{Workers: 1})
	d.Close()
	d.Close()

	err := d.Dispatch(context.Background(), textEvent(1, "late"), nil)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatchQueueFull(t *testing.T) {
	h := newRecordingHandler()
	h.block = make(chan struct{})
	d := New(h, Options{Workers: 1, QueueSize: 1, EnqueueTimeout: 20 * time.Millisecond})

	// One job is held by the worker, one sits in the buffer.
	require.NoError(t, d.Dispatch(context.Background(), textEvent(1, "a"), nil))
	require.Eventually(t, func() bool { return d.Stats().Queued == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Dispatch(context.Background(), textEvent(1, "b"), nil))

	err := d.Dispatch(context.Background(), textEvent(1, "c"), nil)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.EqualValues(t, 1, d.Stats().Dropped)

	close(h.block)
	d.Close()
	assert.Equal(t, []string{"a", "b"}, h.payloads(1))
}

func TestShardForNegativeIDs(t *testing.T) {
	d := New(newRecordingHandler(), Options{Workers: 4})
	defer d.Close()

	for _, id := range []int64{-1001234567890, -1, 0, 3, 1 << 40} {
		s := d.shardFor(id)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, 4)
	}
	assert.Equal(t, d.shardFor(42), d.shardFor(42))
}
