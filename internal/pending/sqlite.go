package pending

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteQueue is the production Queue backed by an embedded sqlite file, so
// staged writes survive process restarts and crashes.
type SQLiteQueue struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the durable queue at the given path.
func OpenSQLite(path string) (*SQLiteQueue, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("OpenSQLite: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("OpenSQLite: migrate: %w", err)
	}
	return &SQLiteQueue{db: db}, nil
}

// Get implements Queue.
func (q *SQLiteQueue) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := q.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pending get %s: %w", id, err)
	}
	return &rec, nil
}

// Put implements Queue. Restaging an id overwrites the prior payload, keeping
// the at-most-one-record-per-id invariant.
func (q *SQLiteQueue) Put(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		return errors.New("pending put: record id is required")
	}
	err := q.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
	if err != nil {
		return fmt.Errorf("pending put %s: %w", rec.ID, err)
	}
	return nil
}

// Delete implements Queue.
func (q *SQLiteQueue) Delete(ctx context.Context, id string) error {
	if err := q.db.WithContext(ctx).Delete(&Record{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("pending delete %s: %w", id, err)
	}
	return nil
}

// ListAll implements Queue, oldest staged first so replay preserves the order
// edits were made in.
func (q *SQLiteQueue) ListAll(ctx context.Context) ([]*Record, error) {
	var recs []*Record
	if err := q.db.WithContext(ctx).Order("staged_at ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("pending list: %w", err)
	}
	return recs, nil
}

// Close implements Queue.
func (q *SQLiteQueue) Close() error {
	sqlDB, err := q.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure SQLiteQueue implements the Queue interface.
var _ Queue = (*SQLiteQueue)(nil)
