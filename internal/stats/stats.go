// Package stats records analysis outcomes into day-bucketed counters and
// aggregates them into multi-day rollups.
//
// Buckets are keyed by UTC calendar date and live in a durable hash store
// (Redis) when one is configured. Any write failure falls through to an
// in-memory counter map keyed identically, so telemetry is never lost for the
// lifetime of the running process. Reads merge both backends.
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contractlens/contractlens/internal/metrics"
)

// Outcome classifies one analysis request.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeLimited Outcome = "limited"
	OutcomeError   Outcome = "error"
)

// UnknownCountry is the bucket for requests without a resolvable country.
const UnknownCountry = "ZZ"

const (
	keyPrefix    = "metrics:analyze:"
	fieldTotal   = "total"
	outcomeScope = "outcome:"
	countryScope = "country:"
	uploadsScope = "uploads:"
)

// DefaultRetention is how long day buckets are kept before the backend's own
// expiry reclaims them.
const DefaultRetention = 60 * 24 * time.Hour

// Event is one recorded analysis outcome.
type Event struct {
	Outcome  Outcome
	Country  string
	Uploaded bool
	When     time.Time
}

// Backend is the counter store capability: atomic per-field increments on a
// keyed hash, and a full-hash read. Missing keys read as empty maps.
type Backend interface {
	IncrFields(ctx context.Context, key string, fields []string, ttl time.Duration) error
	ReadBucket(ctx context.Context, key string) (map[string]int64, error)
}

// DayRow is one day's aggregate in a rollup.
type DayRow struct {
	Day     string `json:"day"`
	Total   int64  `json:"total"`
	OK      int64  `json:"ok"`
	Limited int64  `json:"limited"`
	Error   int64  `json:"error"`
}

// CountryRow ranks one country within a rollup.
type CountryRow struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
	Uploads int64  `json:"uploads"`
}

// Totals sums a rollup across days.
type Totals struct {
	Total   int64 `json:"total"`
	OK      int64 `json:"ok"`
	Limited int64 `json:"limited"`
	Error   int64 `json:"error"`
}

// Rollup aggregates the last N days of buckets.
type Rollup struct {
	Days      []DayRow     `json:"days"`
	Countries []CountryRow `json:"countries"`
	Totals    Totals       `json:"totals"`
}

// topCountries caps the country ranking in a rollup.
const topCountries = 20

// Store records events and serves rollups.
type Store struct {
	backend   Backend
	fallback  *Memory
	retention time.Duration
	logger    *zap.Logger

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// New builds a store. backend may be nil, in which case all counters live in
// the in-memory fallback only.
func New(backend Backend, retention time.Duration, logger *zap.Logger) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:   backend,
		fallback:  NewMemory(),
		retention: retention,
		logger:    logger,
	}
}

func (s *Store) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// DayKey formats the UTC calendar date partition key.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Record increments the day bucket for the event, atomically per field. A
// zero When means now. Backend failures degrade to the in-memory fallback and
// are never surfaced to the caller.
func (s *Store) Record(ctx context.Context, ev Event) {
	when := ev.When
	if when.IsZero() {
		when = s.now()
	}

	country := normalizeCountry(ev.Country)
	key := keyPrefix + DayKey(when)
	fields := []string{
		fieldTotal,
		outcomeScope + string(ev.Outcome),
		countryScope + country,
	}
	if ev.Uploaded {
		fields = append(fields, uploadsScope+country)
	}

	if s.backend != nil {
		if err := s.backend.IncrFields(ctx, key, fields, s.retention); err == nil {
			return
		} else {
			s.logger.Warn("stats backend write failed, using in-memory fallback",
				zap.String("bucket", key), zap.Error(err))
			metrics.RecordStatsFallback()
		}
	}

	// The in-memory map cannot fail.
	_ = s.fallback.IncrFields(ctx, key, fields, s.retention)
}

// ReadRollup aggregates the last days UTC calendar days, today inclusive.
// Days with no recorded events contribute all-zero rows, never an error.
func (s *Store) ReadRollup(ctx context.Context, days int) (*Rollup, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	now := s.now().UTC()
	rollup := &Rollup{Days: make([]DayRow, 0, days)}
	countryCounts := make(map[string]int64)
	countryUploads := make(map[string]int64)

	// Newest day first, reversed at the end so callers get chronological order.
	for i := 0; i < days; i++ {
		day := DayKey(now.AddDate(0, 0, -i))
		bucket := s.readBucket(ctx, keyPrefix+day)

		row := DayRow{
			Day:     day,
			Total:   bucket[fieldTotal],
			OK:      bucket[outcomeScope+string(OutcomeOK)],
			Limited: bucket[outcomeScope+string(OutcomeLimited)],
			Error:   bucket[outcomeScope+string(OutcomeError)],
		}
		rollup.Days = append(rollup.Days, row)

		rollup.Totals.Total += row.Total
		rollup.Totals.OK += row.OK
		rollup.Totals.Limited += row.Limited
		rollup.Totals.Error += row.Error

		for field, value := range bucket {
			switch {
			case strings.HasPrefix(field, countryScope):
				countryCounts[strings.TrimPrefix(field, countryScope)] += value
			case strings.HasPrefix(field, uploadsScope):
				countryUploads[strings.TrimPrefix(field, uploadsScope)] += value
			}
		}
	}

	for i, j := 0, len(rollup.Days)-1; i < j; i, j = i+1, j-1 {
		rollup.Days[i], rollup.Days[j] = rollup.Days[j], rollup.Days[i]
	}

	rollup.Countries = rankCountries(countryCounts, countryUploads)
	return rollup, nil
}

// readBucket merges the durable and fallback views of one bucket. Backend
// read errors count as empty, same as expired or missing buckets.
func (s *Store) readBucket(ctx context.Context, key string) map[string]int64 {
	merged := make(map[string]int64)

	if s.backend != nil {
		if bucket, err := s.backend.ReadBucket(ctx, key); err == nil {
			for field, value := range bucket {
				merged[field] += value
			}
		} else {
			s.logger.Warn("stats backend read failed", zap.String("bucket", key), zap.Error(err))
		}
	}

	fallback, _ := s.fallback.ReadBucket(ctx, key)
	for field, value := range fallback {
		merged[field] += value
	}
	return merged
}

func rankCountries(counts, uploads map[string]int64) []CountryRow {
	rows := make([]CountryRow, 0, len(counts))
	for country, count := range counts {
		rows = append(rows, CountryRow{Country: country, Count: count, Uploads: uploads[country]})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Country < rows[j].Country
	})

	if len(rows) > topCountries {
		rows = rows[:topCountries]
	}
	return rows
}

func normalizeCountry(country string) string {
	country = strings.ToUpper(strings.TrimSpace(country))
	if len(country) != 2 {
		return UnknownCountry
	}
	return country
}
