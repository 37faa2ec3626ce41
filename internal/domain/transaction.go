package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the server-facing lifecycle state of a mutable record.
type Action string

const (
	// ActionAdd marks a record created locally and not yet confirmed.
	ActionAdd Action = "add"
	// ActionEdit marks a record the server already knows about.
	ActionEdit Action = "edit"
	// ActionDelete marks a record queued for deletion.
	ActionDelete Action = "delete"
)

// Transaction is the central entity of the calendar. A transaction belongs to
// exactly one Day bucket at a time and the bucket's date must always match the
// Date field; any date change relocates the record in the same operation.
//
// Method, Category and Tags are shared references into the store's canonical
// reference tables, not copies.
type Transaction struct {
	ID     string `validate:"required"`
	Title  string `validate:"required"`
	Amount decimal.Decimal
	Date   time.Time `validate:"required"`

	Method   *PaymentMethod `validate:"required"`
	Category *Category
	Tags     []*Tag

	Action Action
	// Active is the soft-delete marker. Inactive records stay out of Day
	// buckets but are kept distinguishable from never-seen ids.
	Active bool
	// ExcludeFromTotals keeps the transaction off running-balance math.
	ExcludeFromTotals bool
	// LinkedID points at the counterpart of a transfer/payment pair.
	LinkedID string

	EnteredAt time.Time
	UpdatedAt time.Time
	UpdatedBy string

	prior *Transaction
}

// DateOnly truncates t to midnight UTC so calendar comparisons ignore clock time.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsNew reports whether the transaction still carries a temporary id.
func (t *Transaction) IsNew() bool {
	return IsTempID(t.ID)
}

// Clone returns a deep copy of the transaction's own fields. Shared reference
// entities stay shared; the tag slice is copied so membership edits do not
// leak between copies. The snapshot pointer is not carried over.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.prior = nil
	if t.Tags != nil {
		c.Tags = make([]*Tag, len(t.Tags))
		copy(c.Tags, t.Tags)
	}
	return &c
}

// Snapshot captures the current field values into an attached copy, used for
// change detection and rollback.
func (t *Transaction) Snapshot() {
	t.prior = t.Clone()
}

// Prior returns the attached snapshot, or nil if none was taken.
func (t *Transaction) Prior() *Transaction {
	return t.prior
}

// HasChanges compares live fields against the attached snapshot. Without a
// snapshot every record counts as changed.
func (t *Transaction) HasChanges() bool {
	p := t.prior
	if p == nil {
		return true
	}
	if t.Title != p.Title ||
		!t.Amount.Equal(p.Amount) ||
		!DateOnly(t.Date).Equal(DateOnly(p.Date)) ||
		t.Action != p.Action ||
		t.Active != p.Active ||
		t.ExcludeFromTotals != p.ExcludeFromTotals ||
		t.LinkedID != p.LinkedID {
		return true
	}
	if refID(t.Method) != refID(p.Method) || catID(t.Category) != catID(p.Category) {
		return true
	}
	if len(t.Tags) != len(p.Tags) {
		return true
	}
	for i := range t.Tags {
		if t.Tags[i].ID != p.Tags[i].ID {
			return true
		}
	}
	return false
}

// DateChanged reports whether the date moved relative to the snapshot.
func (t *Transaction) DateChanged() bool {
	if t.prior == nil {
		return false
	}
	return !DateOnly(t.Date).Equal(DateOnly(t.prior.Date))
}

// Restore overwrites live fields from the snapshot. The snapshot itself is
// kept so a restored record still compares as unchanged.
func (t *Transaction) Restore() {
	p := t.prior
	if p == nil {
		return
	}
	restored := p.Clone()
	restored.prior = p
	*t = *restored
}

func refID(m *PaymentMethod) string {
	if m == nil {
		return ""
	}
	return m.ID
}

func catID(c *Category) string {
	if c == nil {
		return ""
	}
	return c.ID
}
