package store

import (
	"time"

	"github.com/m3rciful/pagebot/core/apperror"
)

// ActionType is the closed set of interaction kinds.
type ActionType string

const (
	ActionCommand     ActionType = "command"
	ActionTextMessage ActionType = "text_message"
	ActionButtonClick ActionType = "button_click"
)

// Valid reports whether a is one of the known action types.
func (a ActionType) Valid() bool {
	switch a {
	case ActionCommand, ActionTextMessage, ActionButtonClick:
		return true
	}
	return false
}

func (a ActionType) validate() error {
	if !a.Valid() {
		return apperror.Invalid("action_type", "unknown action type "+string(a))
	}
	return nil
}

// User is a registered sender. Profile fields are captured once and never re-synced.
type User struct {
	ID         int64
	Username   string
	FirstName  string
	LastName   string
	JoinedDate time.Time
}

// Interaction is one appended row of the interaction log.
type Interaction struct {
	ID          int64      `db:"id"`
	UserID      int64      `db:"user_id"`
	ActionType  ActionType `db:"action_type"`
	PageVisited string     `db:"page_visited"`
	Timestamp   time.Time  `db:"timestamp"`
}

// PageVisits is a page label with the number of rows recorded for it.
type PageVisits struct {
	Label string `db:"page_visited"`
	Count int    `db:"visits"`
}
