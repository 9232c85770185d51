package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncState tracks the last sync attempt per connection, with per-run stats.
type SyncState struct {
	ConnectionID  uint64         `gorm:"primaryKey"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz"`
	LastError     *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
