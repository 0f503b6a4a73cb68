package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pagebot/core/apperror"
	"github.com/m3rciful/pagebot/core/database"
)

// stepClock advances by step on every call so rows get distinct, ordered timestamps.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	cfg := database.Config{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "store.db")}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.RunMigrations(cfg, db))
	return db
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return New(newTestDB(t), opts...)
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.EnsureUser(ctx, User{ID: 7, Username: "neo", FirstName: "Thomas", LastName: "Anderson"}))
	first, err := s.GetUser(ctx, 7)
	require.NoError(t, err)

	// A later call with other profile data changes nothing.
	require.NoError(t, s.EnsureUser(ctx, User{ID: 7, Username: "the_one", FirstName: "Neo"}))

	users, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, users)

	again, err := s.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, "neo", again.Username)
	assert.Equal(t, "Anderson", again.LastName)
}

func TestEnsureUserStoresEmptyNamesAsNull(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := New(db)

	require.NoError(t, s.EnsureUser(ctx, User{ID: 1, FirstName: "Ann", Username: "  "}))

	var nulls int
	require.NoError(t, db.Get(&nulls,
		`SELECT COUNT(*) FROM users WHERE user_id = 1 AND username IS NULL AND last_name IS NULL`))
	assert.Equal(t, 1, nulls)
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUser(context.Background(), 404)

	var nf *apperror.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "404", nf.ID)
}

func TestRecordInteractionAssignsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.FixedZone("CET", 3600))
	s := newTestStore(t, WithClock(func() time.Time { return base }))

	require.NoError(t, s.EnsureUser(ctx, User{ID: 5}))
	first, err := s.RecordInteraction(ctx, 5, ActionCommand, "/start")
	require.NoError(t, err)
	second, err := s.RecordInteraction(ctx, 5, ActionButtonClick, "page_about")
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
	want := base.UTC().Truncate(time.Microsecond)
	assert.True(t, first.Timestamp.Equal(want))
	assert.Equal(t, time.UTC, first.Timestamp.Location())

	ts, ok, err := s.FirstInteractionTimestamp(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ts.Equal(want), "got %s want %s", ts, want)
}

func TestRecordInteractionUnknownUser(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RecordInteraction(context.Background(), 99, ActionTextMessage, "message: hi")

	var ref *apperror.ReferentialError
	require.ErrorAs(t, err, &ref)
	assert.EqualValues(t, 99, ref.UserID)
	assert.ErrorIs(t, err, apperror.ErrReferential)
	assert.False(t, errors.Is(err, apperror.ErrStorage))

	n, err := s.CountInteractions(context.Background(), 99)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecordInteractionRejectsUnknownAction(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RecordInteraction(context.Background(), 1, ActionType("swipe"), "x")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCountMatchesRecordedEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.EnsureUser(ctx, User{ID: 1}))
	require.NoError(t, s.EnsureUser(ctx, User{ID: 2}))

	for i := 0; i < 4; i++ {
		require.NoError(t, s.EnsureUser(ctx, User{ID: 1}))
		_, err := s.RecordInteraction(ctx, 1, ActionButtonClick, "page_main")
		require.NoError(t, err)
	}
	_, err := s.RecordInteraction(ctx, 2, ActionCommand, "/help")
	require.NoError(t, err)

	n, err := s.CountInteractions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.CountInteractions(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMostVisitedPage(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
	s := newTestStore(t, WithClock(clock.Now))
	require.NoError(t, s.EnsureUser(ctx, User{ID: 3}))

	_, ok, err := s.MostVisitedPage(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, page := range []string{"portfolio", "page_about", "page_about"} {
		_, err := s.RecordInteraction(ctx, 3, ActionButtonClick, page)
		require.NoError(t, err)
	}
	pv, ok, err := s.MostVisitedPage(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, PageVisits{Label: "page_about", Count: 2}, pv)
}

func TestMostVisitedPageTieGoesToFirstRecorded(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Same timestamp for every row, so the surrogate key decides.
	s := newTestStore(t, WithClock(func() time.Time { return fixed }))
	require.NoError(t, s.EnsureUser(ctx, User{ID: 4}))

	for _, page := range []string{"portfolio", "page_about", "page_about", "portfolio"} {
		_, err := s.RecordInteraction(ctx, 4, ActionButtonClick, page)
		require.NoError(t, err)
	}
	pv, ok, err := s.MostVisitedPage(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, PageVisits{Label: "portfolio", Count: 2}, pv)
}

func TestFirstInteractionTimestampIsStable(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC), step: 1500 * time.Microsecond}
	s := newTestStore(t, WithClock(clock.Now))
	require.NoError(t, s.EnsureUser(ctx, User{ID: 8}))

	_, ok, err := s.FirstInteractionTimestamp(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	first, err := s.RecordInteraction(ctx, 8, ActionCommand, "/start")
	require.NoError(t, err)

	var prev time.Time
	for i := 0; i < 5; i++ {
		_, err := s.RecordInteraction(ctx, 8, ActionTextMessage, "message: again")
		require.NoError(t, err)

		ts, ok, err := s.FirstInteractionTimestamp(ctx, 8)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, ts.Equal(first.Timestamp))
		assert.False(t, ts.Before(prev))
		prev = ts
	}
}

func TestCountInteractionsSince(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), step: time.Hour}
	s := newTestStore(t, WithClock(clock.Now))
	require.NoError(t, s.EnsureUser(ctx, User{ID: 1}))
	for i := 0; i < 5; i++ {
		_, err := s.RecordInteraction(ctx, 1, ActionCommand, "/help")
		require.NoError(t, err)
	}

	// Rows sit at 02:00 through 06:00 (EnsureUser consumed 01:00).
	n, err := s.CountInteractionsSince(ctx, time.Date(2026, 2, 1, 4, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestConcurrentWritersKeepRowsApart(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const senders, events = 4, 10
	for id := int64(1); id <= senders; id++ {
		require.NoError(t, s.EnsureUser(ctx, User{ID: id}))
	}
	var wg sync.WaitGroup
	for id := int64(1); id <= senders; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < events; i++ {
				_, err := s.RecordInteraction(ctx, id, ActionButtonClick, "page_main")
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	for id := int64(1); id <= senders; id++ {
		n, err := s.CountInteractions(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, events, n)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, db.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), apperror.ErrStorage)
}
