package parental

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kidtube/kidtube/internal/config"
	"github.com/kidtube/kidtube/internal/database"
	"github.com/kidtube/kidtube/internal/source"
)

// Setting keys used in the settings table.
const (
	keyPINHash           = "pin_hash"
	keyEnabledCategories = "enabled_categories"
	keyEnabledLanguages  = "enabled_languages"
	keyTimeLimitMinutes  = "time_limit_minutes"
	keyBedtimeHour       = "bedtime_hour"
	keyBedtimeEnabled    = "bedtime_enabled"
	keyWatchDay          = "watch_day"
	keyWatchSeconds      = "watch_seconds"
)

// Store persists parental controls: the PIN, category and language
// selections, blocked channels, the daily time limit and the bedtime hour.
// Blocked channels are mirrored in memory so feed filtering never touches
// the database on the hot path.
type Store struct {
	db       *gorm.DB
	defaults config.ParentalConfig

	mu      sync.RWMutex
	blocked map[string]struct{}
}

// NewStore opens the parental controls over the given database and warms
// the blocked-channel cache.
func NewStore(db *gorm.DB, defaults config.ParentalConfig) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	s := &Store{db: db, defaults: defaults, blocked: make(map[string]struct{})}

	var rows []database.BlockedChannel
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load blocked channels: %w", err)
	}
	for _, row := range rows {
		s.blocked[row.Name] = struct{}{}
	}
	return s, nil
}

// NormalizeChannel canonicalizes a channel name for storage and comparison
func NormalizeChannel(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func hashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// SetPIN stores the parent PIN. Four to eight digits are accepted.
func (s *Store) SetPIN(pin string) error {
	if len(pin) < 4 || len(pin) > 8 {
		return fmt.Errorf("pin must be 4 to 8 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return fmt.Errorf("pin must contain only digits")
		}
	}
	return s.setSetting(keyPINHash, hashPIN(pin))
}

// HasPIN reports whether a PIN has been configured
func (s *Store) HasPIN() bool {
	v, err := s.getSetting(keyPINHash)
	return err == nil && v != ""
}

// VerifyPIN checks the supplied PIN against the stored hash. An unset PIN
// verifies successfully so first-run setup is reachable.
func (s *Store) VerifyPIN(pin string) bool {
	stored, err := s.getSetting(keyPINHash)
	if err != nil || stored == "" {
		return true
	}
	candidate := hashPIN(pin)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// RemovePIN clears the configured PIN
func (s *Store) RemovePIN() error {
	return s.deleteSetting(keyPINHash)
}

// EnabledCategories returns the category ids videos may be drawn from.
// Falls back to the configured defaults, then to every known category.
func (s *Store) EnabledCategories() []string {
	if v, err := s.getSetting(keyEnabledCategories); err == nil && v != "" {
		return strings.Split(v, ",")
	}
	if len(s.defaults.DefaultCategories) > 0 {
		return append([]string(nil), s.defaults.DefaultCategories...)
	}
	cats := source.AllCategories()
	ids := make([]string, len(cats))
	for i, c := range cats {
		ids[i] = c.ID
	}
	return ids
}

// SetEnabledCategories stores the allowed category selection
func (s *Store) SetEnabledCategories(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("at least one category must stay enabled")
	}
	for _, id := range ids {
		if _, ok := source.CategoryByID(id); !ok {
			return fmt.Errorf("unknown category: %s", id)
		}
	}
	return s.setSetting(keyEnabledCategories, strings.Join(ids, ","))
}

// EnabledLanguages returns the languages used to fill query templates
func (s *Store) EnabledLanguages() []string {
	if v, err := s.getSetting(keyEnabledLanguages); err == nil && v != "" {
		return strings.Split(v, ",")
	}
	if len(s.defaults.DefaultLanguages) > 0 {
		return append([]string(nil), s.defaults.DefaultLanguages...)
	}
	return append([]string(nil), source.AllLanguages...)
}

// SetEnabledLanguages stores the language selection
func (s *Store) SetEnabledLanguages(langs []string) error {
	if len(langs) == 0 {
		return fmt.Errorf("at least one language must stay enabled")
	}
	return s.setSetting(keyEnabledLanguages, strings.Join(langs, ","))
}

// BlockChannel adds a channel to the block list. Blocking an already
// blocked channel is a no-op.
func (s *Store) BlockChannel(name string) error {
	normalized := NormalizeChannel(name)
	if normalized == "" {
		return fmt.Errorf("channel name is empty")
	}

	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&database.BlockedChannel{Name: normalized, CreatedAt: time.Now()}).Error
	if err != nil {
		return fmt.Errorf("failed to block channel: %w", err)
	}

	s.mu.Lock()
	s.blocked[normalized] = struct{}{}
	s.mu.Unlock()
	return nil
}

// UnblockChannel removes a channel from the block list
func (s *Store) UnblockChannel(name string) error {
	normalized := NormalizeChannel(name)
	err := s.db.Where("name = ?", normalized).Delete(&database.BlockedChannel{}).Error
	if err != nil {
		return fmt.Errorf("failed to unblock channel: %w", err)
	}

	s.mu.Lock()
	delete(s.blocked, normalized)
	s.mu.Unlock()
	return nil
}

// IsChannelBlocked reports whether a channel is on the block list
func (s *Store) IsChannelBlocked(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocked[NormalizeChannel(name)]
	return ok
}

// BlockedChannels returns the block list, most recently blocked first
func (s *Store) BlockedChannels() ([]string, error) {
	var rows []database.BlockedChannel
	if err := s.db.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list blocked channels: %w", err)
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Name
	}
	return names, nil
}

// BedtimeHour returns the hour (0-23) after which playback is refused
func (s *Store) BedtimeHour() int {
	if v, err := s.getSetting(keyBedtimeHour); err == nil && v != "" {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			return h
		}
	}
	return s.defaults.BedtimeHour
}

// SetBedtimeHour stores the bedtime hour
func (s *Store) SetBedtimeHour(hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("bedtime hour must be between 0 and 23")
	}
	return s.setSetting(keyBedtimeHour, strconv.Itoa(hour))
}

// BedtimeEnabled reports whether the bedtime window is enforced
func (s *Store) BedtimeEnabled() bool {
	v, err := s.getSetting(keyBedtimeEnabled)
	if err != nil || v == "" {
		return true
	}
	return v != "false"
}

// SetBedtimeEnabled toggles bedtime enforcement
func (s *Store) SetBedtimeEnabled(enabled bool) error {
	return s.setSetting(keyBedtimeEnabled, strconv.FormatBool(enabled))
}

// IsBedtime reports whether the given moment falls past bedtime
func (s *Store) IsBedtime(now time.Time) bool {
	return s.BedtimeEnabled() && now.Hour() >= s.BedtimeHour()
}

// TimeLimit returns the daily watch allowance. Zero disables the limit.
func (s *Store) TimeLimit() time.Duration {
	if v, err := s.getSetting(keyTimeLimitMinutes); err == nil && v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 0 {
			return time.Duration(m) * time.Minute
		}
	}
	return time.Duration(s.defaults.TimeLimitMinutes) * time.Minute
}

// SetTimeLimitMinutes stores the daily watch allowance in minutes.
// Zero disables the limit.
func (s *Store) SetTimeLimitMinutes(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("time limit cannot be negative")
	}
	return s.setSetting(keyTimeLimitMinutes, strconv.Itoa(minutes))
}

// AddWatchTime accumulates watched time into today's bucket. A day
// rollover resets the bucket before adding.
func (s *Store) AddWatchTime(d time.Duration, now time.Time) error {
	if d <= 0 {
		return nil
	}
	watched, err := s.watchedOn(now)
	if err != nil {
		return err
	}
	if err := s.setSetting(keyWatchDay, dayKey(now)); err != nil {
		return err
	}
	total := int64((watched + d) / time.Second)
	return s.setSetting(keyWatchSeconds, strconv.FormatInt(total, 10))
}

// WatchedToday returns the time watched so far today
func (s *Store) WatchedToday(now time.Time) (time.Duration, error) {
	return s.watchedOn(now)
}

// TimeLimitReached reports whether today's allowance is used up
func (s *Store) TimeLimitReached(now time.Time) (bool, error) {
	limit := s.TimeLimit()
	if limit <= 0 {
		return false, nil
	}
	watched, err := s.watchedOn(now)
	if err != nil {
		return false, err
	}
	return watched >= limit, nil
}

func (s *Store) watchedOn(now time.Time) (time.Duration, error) {
	day, err := s.getSetting(keyWatchDay)
	if err != nil {
		return 0, err
	}
	if day != dayKey(now) {
		return 0, nil
	}
	v, err := s.getSetting(keyWatchSeconds)
	if err != nil || v == "" {
		return 0, err
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, nil
	}
	return time.Duration(secs) * time.Second, nil
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ResetAll wipes every parental setting and the block list, returning the
// store to its configured defaults.
func (s *Store) ResetAll() error {
	if err := s.db.Where("1 = 1").Delete(&database.Setting{}).Error; err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}
	if err := s.db.Where("1 = 1").Delete(&database.BlockedChannel{}).Error; err != nil {
		return fmt.Errorf("failed to reset blocked channels: %w", err)
	}

	s.mu.Lock()
	s.blocked = make(map[string]struct{})
	s.mu.Unlock()
	return nil
}

func (s *Store) getSetting(key string) (string, error) {
	var row database.Setting
	err := s.db.First(&row, "key = ?", key).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return row.Value, nil
}

func (s *Store) setSetting(key, value string) error {
	row := database.Setting{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) deleteSetting(key string) error {
	return s.db.Where("key = ?", key).Delete(&database.Setting{}).Error
}
