package domain

import (
	"github.com/shopspring/decimal"
)

// StartingAmount is the opening balance of one payment method in one month.
// Invariant: exactly one active record per (method, month) pair. Unified
// methods never own a record; their opening balance is derived.
type StartingAmount struct {
	ID     string
	Method *PaymentMethod
	Year   int
	// Number is the calendar month (1..12).
	Number int
	Amount decimal.Decimal

	Action Action
	Active bool

	UpdatedBy string

	prior *StartingAmount
}

// Snapshot captures current field values for change detection and rollback.
func (s *StartingAmount) Snapshot() {
	c := *s
	c.prior = nil
	s.prior = &c
}

// HasChanges compares live fields against the attached snapshot.
func (s *StartingAmount) HasChanges() bool {
	p := s.prior
	if p == nil {
		return true
	}
	return !s.Amount.Equal(p.Amount) ||
		refID(s.Method) != refID(p.Method) ||
		s.Year != p.Year || s.Number != p.Number ||
		s.Action != p.Action || s.Active != p.Active
}

// Restore overwrites live fields from the snapshot.
func (s *StartingAmount) Restore() {
	if s.prior == nil {
		return
	}
	p := s.prior
	restored := *p
	restored.prior = p
	*s = restored
}

// Budget is a per-category monthly target amount. Plain upsert/delete target;
// budgets never relocate.
type Budget struct {
	ID       string
	Category *Category
	Year     int
	Number   int
	Amount   decimal.Decimal

	Action Action
	Active bool

	prior *Budget
}

// Snapshot captures current field values for change detection and rollback.
func (b *Budget) Snapshot() {
	c := *b
	c.prior = nil
	b.prior = &c
}

// HasChanges compares live fields against the attached snapshot.
func (b *Budget) HasChanges() bool {
	p := b.prior
	if p == nil {
		return true
	}
	return !b.Amount.Equal(p.Amount) ||
		catID(b.Category) != catID(p.Category) ||
		b.Year != p.Year || b.Number != p.Number ||
		b.Action != p.Action || b.Active != p.Active
}

// Restore overwrites live fields from the snapshot.
func (b *Budget) Restore() {
	if b.prior == nil {
		return
	}
	p := b.prior
	restored := *p
	restored.prior = p
	*b = restored
}
