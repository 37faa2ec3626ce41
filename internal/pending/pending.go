// Package pending is the durable pending-write queue: a local, crash-surviving
// mirror of every edit not yet confirmed by the server, keyed by record id.
//
// A queue entry is written before the remote call and deleted only after the
// server confirms the write. Existence of an entry for id X means "X's last
// known edit may not be reflected on the server" — at process startup every
// entry must be replayed before server data for that id can be trusted.
package pending

import (
	"context"
	"time"
)

// EntityKind identifies what the payload of a record decodes into.
type EntityKind string

const (
	KindTransaction    EntityKind = "transaction"
	KindStartingAmount EntityKind = "starting_amount"
	KindBudget         EntityKind = "budget"
)

// Record is one durable pending-write entry. Payload is the server-facing
// JSON form of the entity at the moment it was staged; restaging the same id
// overwrites the payload so exactly one record exists per id.
type Record struct {
	ID       string     `gorm:"primaryKey" json:"id"`
	Kind     EntityKind `gorm:"index" json:"kind"`
	Payload  []byte     `json:"payload"`
	StagedAt time.Time  `json:"staged_at"`
}

// Queue is the durable store interface. Implementations may be used from a
// background goroutine; decoded domain objects are handed back to the owner
// goroutine before being linked into the entity store.
type Queue interface {
	// Get returns the record for an id, or nil when none is staged.
	Get(ctx context.Context, id string) (*Record, error)

	// Put stages or overwrites the record for its id.
	Put(ctx context.Context, rec *Record) error

	// Delete removes the record for an id. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// ListAll returns every staged record, used at process startup to
	// replay anything not yet confirmed.
	ListAll(ctx context.Context) ([]*Record, error)

	// Close releases the underlying store.
	Close() error
}
