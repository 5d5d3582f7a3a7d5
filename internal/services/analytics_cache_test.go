package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niaga-platform/service-commerce-analytics/internal/repository"
)

// memoryBackend is an in-process CacheBackend for tests.
type memoryBackend struct {
	mu      sync.Mutex
	entries map[string]repository.CacheEntry
	err     error
	writes  int
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{entries: make(map[string]repository.CacheEntry)}
}

func (m *memoryBackend) Get(_ context.Context, key string) (*repository.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memoryBackend) Upsert(_ context.Context, key string, value []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes++
	m.entries[key] = repository.CacheEntry{Key: key, Value: value, ExpiresAt: expiresAt}
	return nil
}

func (m *memoryBackend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryBackend) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type sampleReport struct {
	Total float64 `json:"total"`
}

func TestAnalyticsCacheRoundTrip(t *testing.T) {
	svc := NewAnalyticsCacheService(newMemoryBackend(), nil)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "pareto_a", sampleReport{Total: 42}, time.Hour))

	var got sampleReport
	hit, err := svc.Get(ctx, "pareto_a", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42.0, got.Total)
}

func TestAnalyticsCacheExpiryIsStrict(t *testing.T) {
	backend := newMemoryBackend()
	svc := NewAnalyticsCacheService(backend, nil)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", sampleReport{Total: 1}, time.Minute))

	var got sampleReport
	now = now.Add(time.Minute - time.Nanosecond)
	hit, err := svc.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)

	now = now.Add(time.Nanosecond)
	hit, err = svc.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit, "an entry expiring exactly now is stale")
}

func TestAnalyticsCacheMiss(t *testing.T) {
	svc := NewAnalyticsCacheService(newMemoryBackend(), nil)

	var got sampleReport
	hit, err := svc.Get(context.Background(), "absent", &got)

	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAnalyticsCacheWithoutBackend(t *testing.T) {
	svc := NewAnalyticsCacheService(nil, nil)
	ctx := context.Background()

	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.Set(ctx, "k", sampleReport{}, time.Hour))

	var got sampleReport
	hit, err := svc.Get(ctx, "k", &got)
	assert.NoError(t, err)
	assert.False(t, hit)

	n, err := svc.Invalidate(ctx, "")
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnalyticsCacheBackendErrorsSurface(t *testing.T) {
	backend := newMemoryBackend()
	backend.err = errors.New("connection refused")
	svc := NewAnalyticsCacheService(backend, nil)
	ctx := context.Background()

	var got sampleReport
	hit, err := svc.Get(ctx, "k", &got)
	assert.False(t, hit)
	assert.ErrorIs(t, err, backend.err)

	assert.ErrorIs(t, svc.Set(ctx, "k", sampleReport{}, time.Hour), backend.err)
}

func TestAnalyticsCacheCorruptValueIsMiss(t *testing.T) {
	backend := newMemoryBackend()
	backend.entries["k"] = repository.CacheEntry{Key: "k", Value: []byte("{"), ExpiresAt: time.Now().Add(time.Hour)}
	svc := NewAnalyticsCacheService(backend, nil)

	var got sampleReport
	hit, err := svc.Get(context.Background(), "k", &got)

	assert.False(t, hit)
	assert.Error(t, err)
}

func TestAnalyticsCacheNonPositiveTTL(t *testing.T) {
	backend := newMemoryBackend()
	svc := NewAnalyticsCacheService(backend, nil)

	require.NoError(t, svc.Set(context.Background(), "k", sampleReport{}, 0))

	assert.Zero(t, backend.writeCount())
}

func TestAnalyticsCacheInvalidate(t *testing.T) {
	backend := newMemoryBackend()
	svc := NewAnalyticsCacheService(backend, nil)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "geography_v1_a", sampleReport{}, time.Hour))
	require.NoError(t, svc.Set(ctx, "geography_v1_b", sampleReport{}, time.Hour))
	require.NoError(t, svc.Set(ctx, "pareto_a", sampleReport{}, time.Hour))

	n, err := svc.Invalidate(ctx, "geography_")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = svc.Invalidate(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
