// Package cache is the persisted local cache for reference entities
// (payment methods, categories, tags, keywords). It pre-populates the entity
// store before the first network round trip completes, so the calendar is
// usable immediately after launch.
package cache

import (
	"context"
)

// Kind names one reference-entity collection.
type Kind string

const (
	KindPaymentMethod Kind = "payment_method"
	KindCategory      Kind = "category"
	KindTag           Kind = "tag"
	KindKeyword       Kind = "keyword"
)

// Entry is one cached entity in its JSON wire form.
type Entry struct {
	Kind    Kind   `gorm:"primaryKey"`
	ID      string `gorm:"primaryKey"`
	Payload []byte
}

// Cache is a generic entity cache keyed by id per reference-entity kind.
type Cache interface {
	// GetMany returns every cached entry of a kind.
	GetMany(ctx context.Context, kind Kind) ([]*Entry, error)

	// GetOne returns the entry for (kind, id), or nil when absent.
	GetOne(ctx context.Context, kind Kind, id string) (*Entry, error)

	// Save stores or overwrites an entry.
	Save(ctx context.Context, e *Entry) error

	// Delete removes the entry for (kind, id); absent ids are not an error.
	Delete(ctx context.Context, kind Kind, id string) error

	// Close releases the underlying store.
	Close() error
}
