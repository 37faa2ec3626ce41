package cache

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteCache is the production Cache backed by an embedded sqlite file.
type SQLiteCache struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the entity cache at the given path.
// The pending queue and the cache may share one database file.
func OpenSQLite(path string) (*SQLiteCache, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cache.OpenSQLite: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("cache.OpenSQLite: migrate: %w", err)
	}
	return &SQLiteCache{db: db}, nil
}

// GetMany implements Cache.
func (c *SQLiteCache) GetMany(ctx context.Context, kind Kind) ([]*Entry, error) {
	var out []*Entry
	if err := c.db.WithContext(ctx).Where("kind = ?", kind).Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("cache get many %s: %w", kind, err)
	}
	return out, nil
}

// GetOne implements Cache.
func (c *SQLiteCache) GetOne(ctx context.Context, kind Kind, id string) (*Entry, error) {
	var e Entry
	err := c.db.WithContext(ctx).First(&e, "kind = ? AND id = ?", kind, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s/%s: %w", kind, id, err)
	}
	return &e, nil
}

// Save implements Cache.
func (c *SQLiteCache) Save(ctx context.Context, e *Entry) error {
	if e.ID == "" || e.Kind == "" {
		return errors.New("cache save: kind and id are required")
	}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(e).Error
	if err != nil {
		return fmt.Errorf("cache save %s/%s: %w", e.Kind, e.ID, err)
	}
	return nil
}

// Delete implements Cache.
func (c *SQLiteCache) Delete(ctx context.Context, kind Kind, id string) error {
	if err := c.db.WithContext(ctx).Delete(&Entry{}, "kind = ? AND id = ?", kind, id).Error; err != nil {
		return fmt.Errorf("cache delete %s/%s: %w", kind, id, err)
	}
	return nil
}

// Close implements Cache.
func (c *SQLiteCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure SQLiteCache implements the Cache interface.
var _ Cache = (*SQLiteCache)(nil)
