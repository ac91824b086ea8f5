package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"go.uber.org/atomic"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// diskRecord is the row layout of the persistent cache.
type diskRecord struct {
	Key        string    `gorm:"column:cache_key;primaryKey;size:255"`
	Data       []byte    `gorm:"column:data"`
	ETag       string    `gorm:"column:etag;size:255"`
	StoredAt   time.Time `gorm:"column:stored_at"`
	ExpiresAt  time.Time `gorm:"column:expires_at;index"`
	AccessedAt time.Time `gorm:"column:accessed_at;index"`
}

func (diskRecord) TableName() string { return "cache_entries" }

// DiskStore is a persistent Store backed by a gorm database (sqlite or mysql).
// Entry data is stored as JSON and handed back as json.RawMessage; the orchestrator
// decodes it into the caller's type.
type DiskStore struct {
	db     *gorm.DB
	opts   Options
	logger *log.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore opens the database behind dialector and migrates the cache table.
func NewDiskStore(dialector gorm.Dialector, opts Options, logger *log.Logger) (*DiskStore, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	level := gormlogger.Silent
	if logger.Writer() != io.Discard {
		level = gormlogger.Warn
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{LogLevel: level, IgnoreRecordNotFoundError: true}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.AutoMigrate(&diskRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache table: %w", err)
	}
	return &DiskStore{db: db, opts: opts.withDefaults(), logger: logger}, nil
}

func (s *DiskStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var rec diskRecord
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.misses.Inc()
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}

	entry := Entry{
		Data:      json.RawMessage(rec.Data),
		Timestamp: rec.StoredAt,
		ETag:      rec.ETag,
		ExpiresAt: rec.ExpiresAt,
	}
	now := s.opts.Clock.Now()
	if !s.opts.usable(entry, now) {
		if err := s.Delete(ctx, key); err != nil {
			return Entry{}, false, err
		}
		s.misses.Inc()
		return Entry{}, false, nil
	}

	err = s.db.WithContext(ctx).Model(&diskRecord{}).
		Where("cache_key = ?", key).
		Update("accessed_at", now).Error
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to touch cache entry %q: %w", key, err)
	}
	s.hits.Inc()
	return entry, true, nil
}

func (s *DiskStore) Set(ctx context.Context, key string, entry Entry) error {
	data, err := encodeData(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %q: %w", key, err)
	}

	db := s.db.WithContext(ctx)
	var exists int64
	if err := db.Model(&diskRecord{}).Where("cache_key = ?", key).Count(&exists).Error; err != nil {
		return fmt.Errorf("failed to look up cache entry %q: %w", key, err)
	}
	if exists == 0 {
		if err := s.evict(ctx, 1); err != nil {
			return err
		}
	}

	rec := diskRecord{
		Key:        key,
		Data:       data,
		ETag:       entry.ETag,
		StoredAt:   entry.Timestamp,
		ExpiresAt:  entry.ExpiresAt,
		AccessedAt: s.opts.Clock.Now(),
	}
	if err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}
	return nil
}

// evict makes room for incoming new rows by deleting the least recently accessed ones.
func (s *DiskStore) evict(ctx context.Context, incoming int) error {
	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&diskRecord{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count cache entries: %w", err)
	}
	excess := int(count) + incoming - s.opts.MaxEntries
	if excess <= 0 {
		return nil
	}
	var keys []string
	err := db.Model(&diskRecord{}).Order("accessed_at asc").Limit(excess).Pluck("cache_key", &keys).Error
	if err != nil {
		return fmt.Errorf("failed to select cache entries to evict: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := db.Where("cache_key IN ?", keys).Delete(&diskRecord{}).Error; err != nil {
		return fmt.Errorf("failed to evict cache entries: %w", err)
	}
	s.logger.Printf("cache: evicted %d entries", len(keys))
	return nil
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&diskRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete cache entry %q: %w", key, err)
	}
	return nil
}

// Clear drops every row and resets the statistics.
func (s *DiskStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&diskRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	s.hits.Store(0)
	s.misses.Store(0)
	return nil
}

func (s *DiskStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *DiskStore) Stats(ctx context.Context) (Stats, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&diskRecord{}).Count(&count).Error; err != nil {
		return Stats{}, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load(), Entries: count}, nil
}

// Close releases the underlying database connection.
func (s *DiskStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func encodeData(data any) ([]byte, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(data)
}
