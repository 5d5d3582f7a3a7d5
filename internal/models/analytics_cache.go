package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnalyticsCache is one cached report. Rows past ExpiresAt are dead and are
// overwritten in place on the next computation.
type AnalyticsCache struct {
	Key       string         `gorm:"primaryKey;type:varchar(255)" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null" json:"value"`
	ExpiresAt time.Time      `gorm:"not null;index" json:"expires_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName overrides the pluralized default.
func (AnalyticsCache) TableName() string {
	return "analytics_cache"
}
