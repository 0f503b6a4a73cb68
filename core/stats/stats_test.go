package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pagebot/core/apperror"
	"github.com/m3rciful/pagebot/core/store"
)

type fakeReader struct {
	total    int
	visits   *store.PageVisits
	first    *time.Time
	countErr error
	mostErr  error
	firstErr error
	calls    int
}

func (f *fakeReader) CountInteractions(context.Context, int64) (int, error) {
	f.calls++
	return f.total, f.countErr
}

func (f *fakeReader) MostVisitedPage(context.Context, int64) (store.PageVisits, bool, error) {
	if f.mostErr != nil {
		return store.PageVisits{}, false, f.mostErr
	}
	if f.visits == nil {
		return store.PageVisits{}, false, nil
	}
	return *f.visits, true, nil
}

func (f *fakeReader) FirstInteractionTimestamp(context.Context, int64) (time.Time, bool, error) {
	if f.firstErr != nil {
		return time.Time{}, false, f.firstErr
	}
	if f.first == nil {
		return time.Time{}, false, nil
	}
	return *f.first, true, nil
}

func TestSummary(t *testing.T) {
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &fakeReader{total: 3, visits: &store.PageVisits{Label: "page_about", Count: 2}, first: &first}

	sum, err := NewAggregator(r).Summary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	require.NotNil(t, sum.MostVisited)
	assert.Equal(t, store.PageVisits{Label: "page_about", Count: 2}, *sum.MostVisited)
	require.NotNil(t, sum.FirstSeen)
	assert.Equal(t, first, *sum.FirstSeen)
}

func TestSummaryEmpty(t *testing.T) {
	sum, err := NewAggregator(&fakeReader{}).Summary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}

func TestSummaryRereadsEveryCall(t *testing.T) {
	r := &fakeReader{total: 1}
	agg := NewAggregator(r)

	_, err := agg.Summary(context.Background(), 1)
	require.NoError(t, err)
	r.total = 2
	sum, err := agg.Summary(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, r.calls)
}

func TestSummaryPropagatesErrors(t *testing.T) {
	boom := apperror.Storage("count_interactions", errors.New("disk full"))
	for name, r := range map[string]*fakeReader{
		"count": {countErr: boom},
		"most":  {mostErr: boom},
		"first": {firstErr: boom},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewAggregator(r).Summary(context.Background(), 1)
			assert.Same(t, boom, err)
		})
	}
}
