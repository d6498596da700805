package history

import (
	"fmt"
	"time"

	"github.com/sahilm/fuzzy"
	"gorm.io/gorm"

	"github.com/kidtube/kidtube/internal/database"
	"github.com/kidtube/kidtube/internal/source"
)

// DefaultLimit caps the number of watch entries kept on disk
const DefaultLimit = 100

// Service records and queries the child's watch history
type Service struct {
	db    *gorm.DB
	limit int
}

// Entry is a single watched video as exposed to callers
type Entry struct {
	ID         uint
	VideoID    string
	Title      string
	Channel    string
	CategoryID string
	WatchedAt  time.Time
}

// Stats summarizes the stored watch history
type Stats struct {
	TotalItems   int64
	WatchedToday int64
	ByCategory   map[string]int64
}

// NewService creates a history service. A limit of zero or less falls back
// to DefaultLimit.
func NewService(db *gorm.DB, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{db: db, limit: limit}
}

// Add records a watched video. A video identical to the most recent entry
// is skipped so replays and player restarts do not pad the list. The table
// is trimmed to the configured limit, oldest entries first.
func (s *Service) Add(v source.VideoRecord) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	var last database.WatchEntry
	err := s.db.Order("watched_at DESC, id DESC").First(&last).Error
	if err == nil && last.VideoID == v.ID {
		return nil
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to read last watch entry: %w", err)
	}

	entry := database.WatchEntry{
		VideoID:    v.ID,
		Title:      v.Title,
		Channel:    v.Channel,
		CategoryID: v.CategoryID,
		WatchedAt:  time.Now(),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to record watch entry: %w", err)
	}

	return s.trim()
}

// trim deletes the oldest rows beyond the retention limit
func (s *Service) trim() error {
	var count int64
	if err := s.db.Model(&database.WatchEntry{}).Count(&count).Error; err != nil {
		return err
	}
	excess := count - int64(s.limit)
	if excess <= 0 {
		return nil
	}

	var victims []uint
	err := s.db.Model(&database.WatchEntry{}).
		Order("watched_at ASC, id ASC").
		Limit(int(excess)).
		Pluck("id", &victims).Error
	if err != nil {
		return err
	}
	return s.db.Delete(&database.WatchEntry{}, victims).Error
}

// Recent returns the most recently watched entries, newest first
func (s *Service) Recent(limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	var records []database.WatchEntry
	err := s.db.Order("watched_at DESC, id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch watch history: %w", err)
	}
	return toEntries(records), nil
}

// Search fuzzy-matches the query against stored titles and channels and
// returns matching entries, best match first.
func (s *Service) Search(query string) ([]Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var records []database.WatchEntry
	if err := s.db.Order("watched_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch watch history: %w", err)
	}

	haystack := make([]string, len(records))
	for i, r := range records {
		haystack[i] = r.Title + " " + r.Channel
	}

	matches := fuzzy.Find(query, haystack)
	out := make([]Entry, 0, len(matches))
	for _, m := range matches {
		out = append(out, toEntry(records[m.Index]))
	}
	return out, nil
}

// Clear deletes the entire watch history
func (s *Service) Clear() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Where("1 = 1").Delete(&database.WatchEntry{}).Error
}

// GetStats retrieves watch history statistics
func (s *Service) GetStats() (*Stats, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	stats := Stats{ByCategory: make(map[string]int64)}

	if err := s.db.Model(&database.WatchEntry{}).Count(&stats.TotalItems).Error; err != nil {
		return nil, err
	}

	midnight := time.Now().Truncate(24 * time.Hour)
	err := s.db.Model(&database.WatchEntry{}).
		Where("watched_at >= ?", midnight).
		Count(&stats.WatchedToday).Error
	if err != nil {
		return nil, err
	}

	type categoryCount struct {
		CategoryID string
		N          int64
	}
	var rows []categoryCount
	err = s.db.Model(&database.WatchEntry{}).
		Select("category_id, COUNT(*) AS n").
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByCategory[row.CategoryID] = row.N
	}

	return &stats, nil
}

func toEntries(records []database.WatchEntry) []Entry {
	items := make([]Entry, len(records))
	for i, r := range records {
		items[i] = toEntry(r)
	}
	return items
}

func toEntry(r database.WatchEntry) Entry {
	return Entry{
		ID:         r.ID,
		VideoID:    r.VideoID,
		Title:      r.Title,
		Channel:    r.Channel,
		CategoryID: r.CategoryID,
		WatchedAt:  r.WatchedAt,
	}
}
