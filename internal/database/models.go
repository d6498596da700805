package database

import "time"

// WatchEntry is one row of the child's watch history
type WatchEntry struct {
	ID         uint      `gorm:"primaryKey"`
	VideoID    string    `gorm:"not null;index"`
	Title      string    `gorm:"not null"`
	Channel    string    `gorm:"not null;index"`
	CategoryID string    `gorm:"default:''"`
	WatchedAt  time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (WatchEntry) TableName() string {
	return "watch_history"
}

// BlockedChannel is a channel the parent disliked out of the feed.
// Name is stored normalized (trimmed, lowercase).
type BlockedChannel struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (BlockedChannel) TableName() string {
	return "blocked_channels"
}

// Setting is a key/value row for parental settings (PIN hash, enabled
// categories and languages, time limit, bedtime)
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}
