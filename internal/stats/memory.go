package stats

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process Backend. It ignores TTLs: entries live for the
// process lifetime, bounded by the retention horizon's worth of day keys.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string]int64
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]map[string]int64)}
}

// IncrFields increments each field of the keyed bucket by one.
func (m *Memory) IncrFields(ctx context.Context, key string, fields []string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.buckets[key]
	if !ok {
		bucket = make(map[string]int64)
		m.buckets[key] = bucket
	}
	for _, field := range fields {
		bucket[field]++
	}
	return nil
}

// ReadBucket returns a copy of the keyed bucket; missing keys read as empty.
func (m *Memory) ReadBucket(ctx context.Context, key string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.buckets[key]))
	for field, value := range m.buckets[key] {
		out[field] = value
	}
	return out, nil
}
