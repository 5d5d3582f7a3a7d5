package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/niaga-platform/service-commerce-analytics/internal/repository"
)

// CacheBackend stores raw cache entries. Implementations do not judge
// freshness; the cache service does.
type CacheBackend interface {
	Get(ctx context.Context, key string) (*repository.CacheEntry, error)
	Upsert(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// AnalyticsCacheService is a best-effort, time-bounded store of computed
// reports. Errors are returned so callers can log them; callers treat a
// failed read as a miss and a failed write as a no-op.
type AnalyticsCacheService struct {
	backend CacheBackend
	logger  *zap.Logger
	now     func() time.Time
}

// NewAnalyticsCacheService creates a new analytics cache service. A nil
// backend turns every read into a miss and every write into a no-op.
func NewAnalyticsCacheService(backend CacheBackend, logger *zap.Logger) *AnalyticsCacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsCacheService{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

// Enabled reports whether a backend is configured.
func (s *AnalyticsCacheService) Enabled() bool {
	return s.backend != nil
}

// Get decodes the value stored under key into dest. It reports a hit only
// when the entry expires strictly after now.
func (s *AnalyticsCacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	if s.backend == nil {
		return false, nil
	}

	entry, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if entry == nil || !entry.ExpiresAt.After(s.now()) {
		return false, nil
	}

	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}

	s.logger.Debug("cache hit", zap.String("key", key), zap.Time("expires_at", entry.ExpiresAt))
	return true, nil
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (s *AnalyticsCacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.backend == nil || ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	if err := s.backend.Upsert(ctx, key, data, s.now().Add(ttl)); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}

	s.logger.Debug("cached report", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

// Invalidate removes every entry whose key starts with prefix. An empty
// prefix clears the whole cache.
func (s *AnalyticsCacheService) Invalidate(ctx context.Context, prefix string) (int64, error) {
	if s.backend == nil {
		return 0, nil
	}

	n, err := s.backend.DeletePrefix(ctx, prefix)
	if err != nil {
		return n, fmt.Errorf("cache invalidate %q: %w", prefix, err)
	}

	s.logger.Debug("invalidated analytics cache", zap.String("prefix", prefix), zap.Int64("keys_removed", n))
	return n, nil
}
