// Package store holds the authoritative client-visible state: the calendar
// hierarchy of the viewed year plus the canonical reference-entity tables.
//
// The store is not safe for concurrent use. All mutation is funneled through
// the session's owner goroutine; background tasks hand results back to that
// goroutine instead of touching the store directly.
package store

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/dvloznov/moneycal/internal/domain"
)

// ErrUnknownBucket is returned when a record's (year, month) pair resolves to
// none of the 14 month slots of the viewed year. Merge callers log and drop
// such records instead of failing the batch.
var ErrUnknownBucket = errors.New("store: no month bucket for date")

// Scope selects which backing list FindTransaction reads from. Different UI
// flows read from different scopes but all resolve to the same backing record
// once reconciled.
type Scope int

const (
	// ScopePrimary is the calendar hierarchy of the viewed year.
	ScopePrimary Scope = iota
	// ScopeOffline is the list of records replayed from the durable queue
	// whose month is not materialized locally.
	ScopeOffline
	// ScopeSearch is the most recent search-result list.
	ScopeSearch
)

// Store is the in-memory entity hierarchy for one viewed year.
type Store struct {
	log  zerolog.Logger
	year int

	months [domain.SlotCount]*domain.Month

	// index tracks every known transaction, including soft-deleted ones, so
	// the merge engine can distinguish "seen and deactivated" from "never
	// seen". location tracks which Day currently holds a live record.
	index    map[string]*domain.Transaction
	location map[string]*domain.Day

	methods    map[string]*domain.PaymentMethod
	categories map[string]*domain.Category
	tags       map[string]*domain.Tag
	keywords   map[string]*domain.Keyword
	templates  map[string]*domain.Template

	offline []*domain.Transaction
	search  []*domain.Transaction
}

// New creates a store with the 14 month slots of the viewed year materialized.
func New(log zerolog.Logger, year int) *Store {
	s := &Store{
		log:        log,
		index:      make(map[string]*domain.Transaction),
		location:   make(map[string]*domain.Day),
		methods:    make(map[string]*domain.PaymentMethod),
		categories: make(map[string]*domain.Category),
		tags:       make(map[string]*domain.Tag),
		keywords:   make(map[string]*domain.Keyword),
		templates:  make(map[string]*domain.Template),
	}
	s.PrepareYear(year)
	return s
}

// PrepareYear clears and rebuilds the month slots for a viewed year. All
// transaction buckets are dropped; reference tables survive.
func (s *Store) PrepareYear(year int) {
	s.year = year
	s.months[domain.SlotLastDecember] = domain.NewMonth(domain.SlotLastDecember, year-1, 12)
	for m := 1; m <= 12; m++ {
		s.months[m] = domain.NewMonth(m, year, m)
	}
	s.months[domain.SlotNextJanuary] = domain.NewMonth(domain.SlotNextJanuary, year+1, 1)
	s.index = make(map[string]*domain.Transaction)
	s.location = make(map[string]*domain.Day)
}

// Year returns the viewed year.
func (s *Store) Year() int { return s.year }

// MonthSlot returns the month at a logical slot index (0..13).
func (s *Store) MonthSlot(slot int) *domain.Month {
	if slot < 0 || slot >= domain.SlotCount {
		return nil
	}
	return s.months[slot]
}

// MonthFor resolves a calendar (year, month) pair to its slot, accounting for
// the two spillover slots. Returns nil when the pair is outside the viewed
// window.
func (s *Store) MonthFor(year, month int) *domain.Month {
	slot, ok := domain.SlotFor(s.year, year, month)
	if !ok {
		return nil
	}
	return s.months[slot]
}

// dayFor resolves a transaction date to its Day cell.
func (s *Store) dayFor(t *domain.Transaction) *domain.Day {
	m := s.MonthFor(t.Date.Year(), int(t.Date.Month()))
	if m == nil {
		return nil
	}
	return m.DayAt(t.Date.Day())
}

// Lookup returns the indexed transaction for an id, or nil. Soft-deleted
// records are still returned; callers check Active.
func (s *Store) Lookup(id string) *domain.Transaction {
	return s.index[id]
}

// FindTransaction resolves an id within a scope. It never returns nil: when
// the id is not found an empty placeholder transaction is returned, and
// callers must distinguish found from placeholder by comparing ids.
func (s *Store) FindTransaction(id string, scope Scope) *domain.Transaction {
	switch scope {
	case ScopeOffline:
		for _, t := range s.offline {
			if t.ID == id {
				return t
			}
		}
	case ScopeSearch:
		for _, t := range s.search {
			if t.ID == id {
				return t
			}
		}
	}
	if t := s.index[id]; t != nil {
		return t
	}
	return &domain.Transaction{}
}

// UpsertIntoBucket places a transaction into the Day bucket matching its date.
// Known ids are relocated when their current bucket no longer matches;
// unknown ids are inserted. The caller is responsible for having merged any
// field updates beforehand.
func (s *Store) UpsertIntoBucket(t *domain.Transaction) error {
	if existing := s.index[t.ID]; existing != nil {
		return s.Relocate(existing)
	}
	return s.insert(t)
}

func (s *Store) insert(t *domain.Transaction) error {
	day := s.dayFor(t)
	if day == nil {
		return fmt.Errorf("insert %s (%s): %w", t.ID, t.Date.Format("2006-01-02"), ErrUnknownBucket)
	}
	s.index[t.ID] = t
	if t.Active {
		day.Add(t)
		s.location[t.ID] = day
	}
	return nil
}

// Relocate moves a transaction from its current Day to the one matching its
// Date field. A no-op when the record is already in the right bucket.
func (s *Store) Relocate(t *domain.Transaction) error {
	target := s.dayFor(t)
	if target == nil {
		return fmt.Errorf("relocate %s (%s): %w", t.ID, t.Date.Format("2006-01-02"), ErrUnknownBucket)
	}
	current := s.location[t.ID]
	if current == target {
		return nil
	}
	if current != nil {
		current.Remove(t.ID)
	}
	if t.Active {
		target.Add(t)
		s.location[t.ID] = target
	} else {
		delete(s.location, t.ID)
	}
	return nil
}

// SoftDelete removes the transaction from its Day's live collection while
// retaining the record, marked inactive, so a stale delta cannot resurrect it.
func (s *Store) SoftDelete(t *domain.Transaction) {
	if day := s.location[t.ID]; day != nil {
		day.Remove(t.ID)
		delete(s.location, t.ID)
	}
	t.Active = false
	if _, known := s.index[t.ID]; !known {
		s.index[t.ID] = t
	}
}

// Remove drops a transaction entirely: bucket, index and offline list. Used
// by the full-fetch deletion sweep once the server no longer knows the id.
func (s *Store) Remove(id string) {
	if day := s.location[id]; day != nil {
		day.Remove(id)
	}
	delete(s.location, id)
	delete(s.index, id)
	for i, t := range s.offline {
		if t.ID == id {
			s.offline = append(s.offline[:i], s.offline[i+1:]...)
			break
		}
	}
}

// ReplaceTransactionID rewrites a temporary id to the server-assigned
// permanent one everywhere the store references it, including counterpart
// LinkedID fields of paired records.
func (s *Store) ReplaceTransactionID(oldID, newID string) {
	t := s.index[oldID]
	if t == nil {
		return
	}
	t.ID = newID
	if p := t.Prior(); p != nil {
		p.ID = newID
	}
	delete(s.index, oldID)
	s.index[newID] = t
	if day, ok := s.location[oldID]; ok {
		delete(s.location, oldID)
		s.location[newID] = day
	}
	for _, other := range s.index {
		if other.LinkedID == oldID {
			other.LinkedID = newID
			if p := other.Prior(); p != nil {
				p.LinkedID = newID
			}
		}
	}
}

// AddOffline tracks a replayed record whose month bucket is not materialized.
func (s *Store) AddOffline(t *domain.Transaction) {
	s.offline = append(s.offline, t)
	s.index[t.ID] = t
}

// Offline returns the offline-scope list.
func (s *Store) Offline() []*domain.Transaction { return s.offline }

// SetSearchResults replaces the search-scope list.
func (s *Store) SetSearchResults(results []*domain.Transaction) {
	s.search = results
}

// TransactionsInMonth returns the live transactions of a month slot in
// calendar order.
func (s *Store) TransactionsInMonth(m *domain.Month) []*domain.Transaction {
	var out []*domain.Transaction
	for _, d := range m.Days {
		if d.Placeholder {
			continue
		}
		out = append(out, d.Transactions...)
	}
	return out
}

// Methods returns the canonical payment methods ordered by sort order.
func (s *Store) Methods() []*domain.PaymentMethod {
	out := make([]*domain.PaymentMethod, 0, len(s.methods))
	for _, m := range s.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Method returns the canonical payment method for an id, or nil.
func (s *Store) Method(id string) *domain.PaymentMethod { return s.methods[id] }

// Category returns the canonical category for an id, or nil.
func (s *Store) Category(id string) *domain.Category { return s.categories[id] }

// Tag returns the canonical tag for an id, or nil.
func (s *Store) Tag(id string) *domain.Tag { return s.tags[id] }

// Keyword returns the canonical keyword for an id, or nil.
func (s *Store) Keyword(id string) *domain.Keyword { return s.keywords[id] }

// Template returns the canonical repeating template for an id, or nil.
func (s *Store) Template(id string) *domain.Template { return s.templates[id] }

// ResolveMethod returns the canonical record for a method id, creating an
// inactive stub when the id has not been seen yet. Deltas may reference
// entities that arrive later in the same batch.
func (s *Store) ResolveMethod(id string) *domain.PaymentMethod {
	if id == "" {
		return nil
	}
	if m, ok := s.methods[id]; ok {
		return m
	}
	stub := &domain.PaymentMethod{ID: id}
	s.methods[id] = stub
	return stub
}

// ResolveCategory returns the canonical record for a category id, creating an
// inactive stub when unseen.
func (s *Store) ResolveCategory(id string) *domain.Category {
	if id == "" {
		return nil
	}
	if c, ok := s.categories[id]; ok {
		return c
	}
	stub := &domain.Category{ID: id}
	s.categories[id] = stub
	return stub
}

// ResolveTag returns the canonical record for a tag id, creating an inactive
// stub when unseen.
func (s *Store) ResolveTag(id string) *domain.Tag {
	if id == "" {
		return nil
	}
	if t, ok := s.tags[id]; ok {
		return t
	}
	stub := &domain.Tag{ID: id}
	s.tags[id] = stub
	return stub
}

// UpsertPaymentMethod copies incoming fields onto the canonical record,
// keeping the pointer every holder shares, so the update propagates to all
// transactions, starting amounts and templates in one table write.
func (s *Store) UpsertPaymentMethod(in *domain.PaymentMethod) *domain.PaymentMethod {
	existing, ok := s.methods[in.ID]
	if !ok {
		s.methods[in.ID] = in
		return in
	}
	*existing = *in
	return existing
}

// UpsertCategory copies incoming fields onto the canonical shared record.
func (s *Store) UpsertCategory(in *domain.Category) *domain.Category {
	existing, ok := s.categories[in.ID]
	if !ok {
		s.categories[in.ID] = in
		return in
	}
	*existing = *in
	return existing
}

// UpsertTag copies incoming fields onto the canonical shared record.
func (s *Store) UpsertTag(in *domain.Tag) *domain.Tag {
	existing, ok := s.tags[in.ID]
	if !ok {
		s.tags[in.ID] = in
		return in
	}
	*existing = *in
	return existing
}

// UpsertKeyword copies incoming fields onto the canonical shared record.
func (s *Store) UpsertKeyword(in *domain.Keyword) *domain.Keyword {
	existing, ok := s.keywords[in.ID]
	if !ok {
		s.keywords[in.ID] = in
		return in
	}
	*existing = *in
	return existing
}

// UpsertTemplate copies incoming fields onto the canonical shared record.
func (s *Store) UpsertTemplate(in *domain.Template) *domain.Template {
	existing, ok := s.templates[in.ID]
	if !ok {
		s.templates[in.ID] = in
		return in
	}
	*existing = *in
	return existing
}

// UpsertStartingAmount places a starting amount into its month, enforcing the
// one-record-per-(method, month) invariant. Inactive records are removed from
// the month's collection.
func (s *Store) UpsertStartingAmount(sa *domain.StartingAmount) error {
	m := s.MonthFor(sa.Year, sa.Number)
	if m == nil {
		return fmt.Errorf("starting amount %s (%d-%02d): %w", sa.ID, sa.Year, sa.Number, ErrUnknownBucket)
	}
	for i, existing := range m.StartingAmounts {
		same := existing.ID == sa.ID ||
			(existing.Method != nil && sa.Method != nil && existing.Method.ID == sa.Method.ID)
		if !same {
			continue
		}
		if !sa.Active {
			m.StartingAmounts = append(m.StartingAmounts[:i], m.StartingAmounts[i+1:]...)
			return nil
		}
		*existing = *sa
		return nil
	}
	if sa.Active {
		m.StartingAmounts = append(m.StartingAmounts, sa)
	}
	return nil
}

// UpsertBudget places a budget into its month keyed by id, falling back to the
// (category, month) pair. Inactive records are removed.
func (s *Store) UpsertBudget(b *domain.Budget) error {
	m := s.MonthFor(b.Year, b.Number)
	if m == nil {
		return fmt.Errorf("budget %s (%d-%02d): %w", b.ID, b.Year, b.Number, ErrUnknownBucket)
	}
	for i, existing := range m.Budgets {
		same := existing.ID == b.ID ||
			(existing.Category != nil && b.Category != nil && existing.Category.ID == b.Category.ID)
		if !same {
			continue
		}
		if !b.Active {
			m.Budgets = append(m.Budgets[:i], m.Budgets[i+1:]...)
			return nil
		}
		*existing = *b
		return nil
	}
	if b.Active {
		m.Budgets = append(m.Budgets, b)
	}
	return nil
}
