// Package repository holds the storage backends of the analytics cache.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/niaga-platform/service-commerce-analytics/internal/models"
)

// CacheEntry is a stored value and the instant it stops being valid.
type CacheEntry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// CacheRepository stores cache entries in the analytics_cache table.
type CacheRepository struct {
	db *gorm.DB
}

// NewCacheRepository creates a Postgres cache backend.
func NewCacheRepository(db *gorm.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Get returns the row stored under key, expired or not. A missing row is
// (nil, nil).
func (r *CacheRepository) Get(ctx context.Context, key string) (*CacheEntry, error) {
	var row models.AnalyticsCache
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cache row %s: %w", key, err)
	}
	return &CacheEntry{Key: row.Key, Value: []byte(row.Value), ExpiresAt: row.ExpiresAt}, nil
}

// Upsert writes value under key, replacing any previous row.
func (r *CacheRepository) Upsert(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	row := models.AnalyticsCache{
		Key:       key,
		Value:     datatypes.JSON(value),
		ExpiresAt: expiresAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert cache row %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every row whose key starts with prefix.
func (r *CacheRepository) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("key LIKE ?", likeEscaper.Replace(prefix)+"%").
		Delete(&models.AnalyticsCache{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete cache prefix %s: %w", prefix, res.Error)
	}
	return res.RowsAffected, nil
}

// PurgeExpired drops rows that expired before now.
func (r *CacheRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.AnalyticsCache{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge expired cache rows: %w", res.Error)
	}
	return res.RowsAffected, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
