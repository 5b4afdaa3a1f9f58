package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordAndRollupSingleDay(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s := New(nil, 0, nil)
	s.Clock = fixedClock(now)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Record(ctx, Event{Outcome: OutcomeOK, Country: "LT", Uploaded: true})
	}
	s.Record(ctx, Event{Outcome: OutcomeError, Country: "US"})
	s.Record(ctx, Event{Outcome: OutcomeLimited, Country: "US"})

	rollup, err := s.ReadRollup(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rollup.Days, 1)

	day := rollup.Days[0]
	require.Equal(t, "2025-06-15", day.Day)
	require.Equal(t, int64(5), day.Total)
	require.Equal(t, int64(3), day.OK)
	require.Equal(t, int64(1), day.Limited)
	require.Equal(t, int64(1), day.Error)

	require.Equal(t, Totals{Total: 5, OK: 3, Limited: 1, Error: 1}, rollup.Totals)

	require.Len(t, rollup.Countries, 2)
	require.Equal(t, CountryRow{Country: "LT", Count: 3, Uploads: 3}, rollup.Countries[0])
	require.Equal(t, CountryRow{Country: "US", Count: 2, Uploads: 0}, rollup.Countries[1])
}

func TestRollupSpansDaysChronologically(t *testing.T) {
	now := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	s := New(nil, 0, nil)
	s.Clock = fixedClock(now)

	ctx := context.Background()
	s.Record(ctx, Event{Outcome: OutcomeOK, When: now.AddDate(0, 0, -2)})
	s.Record(ctx, Event{Outcome: OutcomeOK, When: now})

	rollup, err := s.ReadRollup(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rollup.Days, 3)
	require.Equal(t, "2025-06-13", rollup.Days[0].Day)
	require.Equal(t, "2025-06-14", rollup.Days[1].Day)
	require.Equal(t, "2025-06-15", rollup.Days[2].Day)
	require.Equal(t, int64(1), rollup.Days[0].Total)
	require.Equal(t, int64(0), rollup.Days[1].Total)
	require.Equal(t, int64(1), rollup.Days[2].Total)
}

func TestRollupEmptyDaysAreZero(t *testing.T) {
	s := New(nil, 0, nil)

	rollup, err := s.ReadRollup(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, rollup.Days, 7)
	for _, day := range rollup.Days {
		require.Zero(t, day.Total)
	}
	require.Empty(t, rollup.Countries)
}

func TestRollupRejectsNonPositiveDays(t *testing.T) {
	s := New(nil, 0, nil)
	_, err := s.ReadRollup(context.Background(), 0)
	require.Error(t, err)
}

// failingBackend simulates an unreachable durable store.
type failingBackend struct {
	mu    sync.Mutex
	calls int
}

func (f *failingBackend) IncrFields(context.Context, string, []string, time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("connection refused")
}

func (f *failingBackend) ReadBucket(context.Context, string) (map[string]int64, error) {
	return nil, errors.New("connection refused")
}

func TestBackendFailureFallsThroughToMemory(t *testing.T) {
	backend := &failingBackend{}
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s := New(backend, 0, nil)
	s.Clock = fixedClock(now)

	ctx := context.Background()
	s.Record(ctx, Event{Outcome: OutcomeOK, Country: "DE", Uploaded: true})
	require.Equal(t, 1, backend.calls)

	rollup, err := s.ReadRollup(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), rollup.Totals.Total)
	require.Equal(t, int64(1), rollup.Totals.OK)
	require.Equal(t, CountryRow{Country: "DE", Count: 1, Uploads: 1}, rollup.Countries[0])
}

func TestRollupMergesBackendAndFallback(t *testing.T) {
	backend := NewMemory()
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s := New(backend, 0, nil)
	s.Clock = fixedClock(now)

	ctx := context.Background()
	s.Record(ctx, Event{Outcome: OutcomeOK, Country: "LT"})

	// Simulate an earlier degraded write that landed in the fallback.
	require.NoError(t, s.fallback.IncrFields(ctx, "metrics:analyze:2025-06-15",
		[]string{"total", "outcome:ok", "country:LT"}, 0))

	rollup, err := s.ReadRollup(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), rollup.Totals.Total)
	require.Equal(t, int64(2), rollup.Countries[0].Count)
}

func TestConcurrentRecordsLoseNothing(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s := New(nil, 0, nil)
	s.Clock = fixedClock(now)

	const k = 100
	var wg sync.WaitGroup
	wg.Add(k)
	for i := 0; i < k; i++ {
		go func() {
			defer wg.Done()
			s.Record(context.Background(), Event{Outcome: OutcomeOK, Country: "LT"})
		}()
	}
	wg.Wait()

	rollup, err := s.ReadRollup(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(k), rollup.Days[0].OK)
	require.Equal(t, int64(k), rollup.Days[0].Total)
}

func TestCountryRankingTruncatesToTop20(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	s := New(nil, 0, nil)
	s.Clock = fixedClock(now)

	ctx := context.Background()
	countries := []string{
		"AA", "AB", "AC", "AD", "AE", "AF", "AG", "AH", "AI", "AJ",
		"AK", "AL", "AM", "AN", "AO", "AP", "AQ", "AR", "AS", "AT",
		"AU", "AV",
	}
	for weight, country := range countries {
		for i := 0; i <= weight; i++ {
			s.Record(ctx, Event{Outcome: OutcomeOK, Country: country})
		}
	}

	rollup, err := s.ReadRollup(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rollup.Countries, 20)
	require.Equal(t, "AV", rollup.Countries[0].Country)
	require.Equal(t, int64(22), rollup.Countries[0].Count)
	// The two lightest countries fall off the ranking.
	for _, row := range rollup.Countries {
		require.NotContains(t, []string{"AA", "AB"}, row.Country)
	}
}

func TestNormalizeCountry(t *testing.T) {
	require.Equal(t, "LT", normalizeCountry(" lt "))
	require.Equal(t, UnknownCountry, normalizeCountry(""))
	require.Equal(t, UnknownCountry, normalizeCountry("USA"))
}
