// Package store persists users and the append-only interaction log and
// answers the per-user aggregate queries behind the statistics page.
package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/pagebot/core/apperror"
	"github.com/m3rciful/pagebot/core/database"
	"github.com/m3rciful/pagebot/core/logger"
)

// Store owns the database handle used for users and interactions.
// It is safe for concurrent use.
type Store struct {
	db    *sqlx.DB
	now   func() time.Time
	isFKV func(error) bool
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for store-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an open database handle. Schema migrations must already be applied.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		now:   time.Now,
		isFKV: database.IsForeignKeyViolation,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp returns the store clock in UTC at microsecond precision,
// the finest resolution both postgres and the sqlite text encoding keep.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// EnsureUser inserts u if no user with the same id exists. Repeated calls are no-ops.
func (s *Store) EnsureUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (user_id, username, first_name, last_name, joined_date)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`),
		u.ID, nullString(u.Username), nullString(u.FirstName), nullString(u.LastName), s.timestamp(),
	)
	if err != nil {
		return s.fail(ctx, "ensure_user", u.ID, err)
	}
	return nil
}

// GetUser loads a registered user. Unknown ids return a NotFoundError.
func (s *Store) GetUser(ctx context.Context, userID int64) (User, error) {
	var row struct {
		ID         int64          `db:"user_id"`
		Username   sql.NullString `db:"username"`
		FirstName  sql.NullString `db:"first_name"`
		LastName   sql.NullString `db:"last_name"`
		JoinedDate time.Time      `db:"joined_date"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT user_id, username, first_name, last_name, joined_date
		FROM users WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperror.NotFound("user", strconv.FormatInt(userID, 10))
	}
	if err != nil {
		return User{}, s.fail(ctx, "get_user", userID, err)
	}
	return User{
		ID:         row.ID,
		Username:   row.Username.String,
		FirstName:  row.FirstName.String,
		LastName:   row.LastName.String,
		JoinedDate: row.JoinedDate.UTC(),
	}, nil
}

// RecordInteraction appends one interaction with a store-assigned id and timestamp.
// An unregistered userID yields a ReferentialError.
func (s *Store) RecordInteraction(ctx context.Context, userID int64, action ActionType, page string) (Interaction, error) {
	if err := action.validate(); err != nil {
		return Interaction{}, err
	}
	in := Interaction{
		UserID:      userID,
		ActionType:  action,
		PageVisited: page,
		Timestamp:   s.timestamp(),
	}
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`
		INSERT INTO interactions (user_id, action_type, page_visited, timestamp)
		VALUES (?, ?, ?, ?)
		RETURNING id`),
		in.UserID, string(in.ActionType), in.PageVisited, in.Timestamp,
	).Scan(&in.ID)
	if err != nil {
		if s.isFKV(err) {
			return Interaction{}, &apperror.ReferentialError{UserID: userID, Err: err}
		}
		return Interaction{}, s.fail(ctx, "record_interaction", userID, err)
	}
	return in, nil
}

// CountInteractions returns the number of interactions recorded for userID.
func (s *Store) CountInteractions(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`
		SELECT COUNT(*) FROM interactions WHERE user_id = ?`), userID)
	if err != nil {
		return 0, s.fail(ctx, "count_interactions", userID, err)
	}
	return n, nil
}

// MostVisitedPage returns the label with the most rows for userID. Ties go to the
// label that was recorded first. ok is false when the user has no interactions.
func (s *Store) MostVisitedPage(ctx context.Context, userID int64) (PageVisits, bool, error) {
	var pv PageVisits
	err := s.db.GetContext(ctx, &pv, s.db.Rebind(`
		SELECT page_visited, COUNT(*) AS visits
		FROM interactions
		WHERE user_id = ?
		GROUP BY page_visited
		ORDER BY visits DESC, MIN(timestamp) ASC, MIN(id) ASC
		LIMIT 1`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return PageVisits{}, false, nil
	}
	if err != nil {
		return PageVisits{}, false, s.fail(ctx, "most_visited_page", userID, err)
	}
	return pv, true, nil
}

// FirstInteractionTimestamp returns the timestamp of the earliest row for userID.
// ok is false when the user has no interactions.
func (s *Store) FirstInteractionTimestamp(ctx context.Context, userID int64) (time.Time, bool, error) {
	var ts time.Time
	// ORDER BY instead of MIN keeps the column type so drivers decode a time value.
	err := s.db.GetContext(ctx, &ts, s.db.Rebind(`
		SELECT timestamp FROM interactions
		WHERE user_id = ?
		ORDER BY timestamp ASC, id ASC
		LIMIT 1`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, s.fail(ctx, "first_interaction_timestamp", userID, err)
	}
	return ts.UTC(), true, nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, s.fail(ctx, "count_users", 0, err)
	}
	return n, nil
}

// CountInteractionsSince returns the number of interactions of all users at or after since.
func (s *Store) CountInteractionsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(`
		SELECT COUNT(*) FROM interactions WHERE timestamp >= ?`),
		since.UTC().Truncate(time.Microsecond))
	if err != nil {
		return 0, s.fail(ctx, "count_interactions_since", 0, err)
	}
	return n, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperror.Storage("ping", err)
	}
	return nil
}

func (s *Store) fail(ctx context.Context, op string, userID int64, err error) error {
	wrapped := apperror.Storage(op, err)
	attrs := append(logger.ErrAttrs(wrapped), slog.String("op", op))
	if userID != 0 {
		attrs = append(attrs, slog.Int64("user_id", userID))
	}
	logger.Warn(ctx, logger.CompStore, "store."+op, attrs...)
	return wrapped
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
