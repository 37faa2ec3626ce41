package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Month slot numbering. A viewed year materializes 14 logical month slots:
// the 12 real months plus two spillover slots so day views near a year
// boundary can see into the adjacent calendar year.
const (
	// SlotLastDecember is December of the previous calendar year.
	SlotLastDecember = 0
	// SlotNextJanuary is January of the following calendar year.
	SlotNextJanuary = 13
	// SlotCount is the number of logical month slots per viewed year.
	SlotCount = 14
)

// Day is one calendar cell: a real date owning an insertion-ordered set of
// transactions, or a placeholder used to align the first week of a month grid.
type Day struct {
	Date        time.Time
	Placeholder bool
	// Transactions holds the live (active) records for this date in
	// insertion order.
	Transactions []*Transaction
	// EndBalance is the running end-of-day balance for the most recently
	// computed payment-method filter.
	EndBalance decimal.Decimal
}

// Add appends a transaction to the day's live collection.
func (d *Day) Add(t *Transaction) {
	d.Transactions = append(d.Transactions, t)
}

// Remove drops the transaction with the given id from the live collection.
// It reports whether the id was present.
func (d *Day) Remove(id string) bool {
	for i, t := range d.Transactions {
		if t.ID == id {
			d.Transactions = append(d.Transactions[:i], d.Transactions[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the transaction with the given id, or nil.
func (d *Day) Find(id string) *Transaction {
	for _, t := range d.Transactions {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Month is one logical month slot owning its day cells, budgets and
// per-payment-method starting amounts.
type Month struct {
	// Slot is the logical index (0..13) within the viewed year.
	Slot int
	// Year and Number are the calendar year and month (1..12) this slot
	// represents; for the spillover slots they differ from the viewed year.
	Year   int
	Number int

	Days            []*Day
	Budgets         []*Budget
	StartingAmounts []*StartingAmount
}

// NewMonth builds a month slot with one Day per calendar date, preceded by
// placeholder cells padding the grid to a Sunday week start.
func NewMonth(slot, year, number int) *Month {
	m := &Month{Slot: slot, Year: year, Number: number}
	first := time.Date(year, time.Month(number), 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < int(first.Weekday()); i++ {
		m.Days = append(m.Days, &Day{Placeholder: true})
	}
	for d := first; d.Month() == time.Month(number); d = d.AddDate(0, 0, 1) {
		m.Days = append(m.Days, &Day{Date: d})
	}
	return m
}

// DayAt returns the Day cell for the given day-of-month, skipping placeholder
// cells. Returns nil when the day does not exist in this month.
func (m *Month) DayAt(dayOfMonth int) *Day {
	for _, d := range m.Days {
		if !d.Placeholder && d.Date.Day() == dayOfMonth {
			return d
		}
	}
	return nil
}

// StartingAmountFor returns the month's starting amount for a payment method,
// or nil. Unified methods have no stored record; callers derive those by
// summing constituents.
func (m *Month) StartingAmountFor(methodID string) *StartingAmount {
	for _, sa := range m.StartingAmounts {
		if sa.Method != nil && sa.Method.ID == methodID && sa.Active {
			return sa
		}
	}
	return nil
}

// BudgetFor returns the month's budget for a category, or nil.
func (m *Month) BudgetFor(categoryID string) *Budget {
	for _, b := range m.Budgets {
		if b.Category != nil && b.Category.ID == categoryID && b.Active {
			return b
		}
	}
	return nil
}

// SlotFor resolves a calendar (year, month) pair to the logical slot index
// relative to the viewed year, accounting for the two spillover slots. The
// second return value is false when the pair falls outside the 14 slots.
func SlotFor(viewedYear, year, month int) (int, bool) {
	switch {
	case year == viewedYear:
		return month, true
	case year == viewedYear-1 && month == 12:
		return SlotLastDecember, true
	case year == viewedYear+1 && month == 1:
		return SlotNextJanuary, true
	default:
		return 0, false
	}
}
