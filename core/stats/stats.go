// Package stats composes the per-user statistics summary from store reads.
package stats

import (
	"context"
	"time"

	"github.com/m3rciful/pagebot/core/store"
)

// Reader is the read side of the interaction store.
type Reader interface {
	CountInteractions(ctx context.Context, userID int64) (int, error)
	MostVisitedPage(ctx context.Context, userID int64) (store.PageVisits, bool, error)
	FirstInteractionTimestamp(ctx context.Context, userID int64) (time.Time, bool, error)
}

// Summary is the statistics of one user. MostVisited and FirstSeen are nil
// when the user has no interactions.
type Summary struct {
	Total       int
	MostVisited *store.PageVisits
	FirstSeen   *time.Time
}

// Aggregator builds summaries. It holds no cache, every call re-reads the store.
type Aggregator struct {
	reader Reader
}

// NewAggregator returns an Aggregator over r.
func NewAggregator(r Reader) *Aggregator {
	return &Aggregator{reader: r}
}

// Summary reads the statistics of userID. Store errors are returned unchanged.
func (a *Aggregator) Summary(ctx context.Context, userID int64) (Summary, error) {
	var sum Summary

	total, err := a.reader.CountInteractions(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	sum.Total = total

	pv, ok, err := a.reader.MostVisitedPage(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	if ok {
		sum.MostVisited = &pv
	}

	first, ok, err := a.reader.FirstInteractionTimestamp(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	if ok {
		sum.FirstSeen = &first
	}
	return sum, nil
}
