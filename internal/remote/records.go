package remote

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/moneycal/internal/domain"
)

// DateFormat is the wire form of calendar dates.
const DateFormat = "2006-01-02"

// ParseDate parses a wire date (YYYY-MM-DD) into a midnight-UTC time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("ParseDate %q: %w", s, err)
	}
	return t, nil
}

// TransactionRecord is the server-facing form of a transaction. References
// are carried by id; the merge engine resolves them against the store's
// canonical tables.
type TransactionRecord struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Amount            decimal.Decimal `json:"amount"`
	Date              string          `json:"date"`
	MethodID          string          `json:"method_id"`
	CategoryID        string          `json:"category_id,omitempty"`
	TagIDs            []string        `json:"tag_ids,omitempty"`
	Action            domain.Action   `json:"action"`
	Active            bool            `json:"active"`
	ExcludeFromTotals bool            `json:"exclude_from_totals,omitempty"`
	LinkedID          string          `json:"linked_id,omitempty"`
	EnteredAt         time.Time       `json:"entered_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	UpdatedBy         string          `json:"updated_by"`
}

// RecordFromTransaction flattens a domain transaction into its wire form.
func RecordFromTransaction(t *domain.Transaction) *TransactionRecord {
	rec := &TransactionRecord{
		ID:                t.ID,
		Title:             t.Title,
		Amount:            t.Amount,
		Date:              domain.DateOnly(t.Date).Format(DateFormat),
		Action:            t.Action,
		Active:            t.Active,
		ExcludeFromTotals: t.ExcludeFromTotals,
		LinkedID:          t.LinkedID,
		EnteredAt:         t.EnteredAt,
		UpdatedAt:         t.UpdatedAt,
		UpdatedBy:         t.UpdatedBy,
	}
	if t.Method != nil {
		rec.MethodID = t.Method.ID
	}
	if t.Category != nil {
		rec.CategoryID = t.Category.ID
	}
	for _, tag := range t.Tags {
		rec.TagIDs = append(rec.TagIDs, tag.ID)
	}
	return rec
}

// StartingAmountRecord is the wire form of a monthly opening balance.
type StartingAmountRecord struct {
	ID       string          `json:"id"`
	MethodID string          `json:"method_id"`
	Year     int             `json:"year"`
	Month    int             `json:"month"`
	Amount   decimal.Decimal `json:"amount"`
	Action   domain.Action   `json:"action"`
	Active   bool            `json:"active"`
}

// RecordFromStartingAmount flattens a domain starting amount into wire form.
func RecordFromStartingAmount(s *domain.StartingAmount) *StartingAmountRecord {
	rec := &StartingAmountRecord{
		ID:     s.ID,
		Year:   s.Year,
		Month:  s.Number,
		Amount: s.Amount,
		Action: s.Action,
		Active: s.Active,
	}
	if s.Method != nil {
		rec.MethodID = s.Method.ID
	}
	return rec
}

// BudgetRecord is the wire form of a per-category monthly target.
type BudgetRecord struct {
	ID         string          `json:"id"`
	CategoryID string          `json:"category_id"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Amount     decimal.Decimal `json:"amount"`
	Action     domain.Action   `json:"action"`
	Active     bool            `json:"active"`
}

// RecordFromBudget flattens a domain budget into wire form.
func RecordFromBudget(b *domain.Budget) *BudgetRecord {
	rec := &BudgetRecord{
		ID:     b.ID,
		Year:   b.Year,
		Month:  b.Number,
		Amount: b.Amount,
		Action: b.Action,
		Active: b.Active,
	}
	if b.Category != nil {
		rec.CategoryID = b.Category.ID
	}
	return rec
}

// MethodRecord is the wire form of a payment method.
type MethodRecord struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Type           domain.AccountType `json:"type"`
	CreditLimit    decimal.Decimal    `json:"credit_limit"`
	ConstituentIDs []string           `json:"constituent_ids,omitempty"`
	SortOrder      int                `json:"sort_order"`
	Active         bool               `json:"active"`
}

// CategoryRecord is the wire form of a category.
type CategoryRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	Active    bool   `json:"active"`
}

// TagRecord is the wire form of a tag.
type TagRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// KeywordRecord is the wire form of a keyword.
type KeywordRecord struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	CategoryID string `json:"category_id,omitempty"`
	Active     bool   `json:"active"`
}

// TemplateRecord is the wire form of a repeating-transaction template.
type TemplateRecord struct {
	ID         string                `json:"id"`
	Title      string                `json:"title"`
	Amount     decimal.Decimal       `json:"amount"`
	MethodID   string                `json:"method_id,omitempty"`
	CategoryID string                `json:"category_id,omitempty"`
	Schedule   domain.RepeatSchedule `json:"schedule"`
	DayOfMonth int                   `json:"day_of_month"`
	Active     bool                  `json:"active"`
}

// DeltaBatch is one unit of remotely-sourced change: any subset of the entity
// kinds may be present. It is applied atomically to the entity store.
type DeltaBatch struct {
	Cursor int64 `json:"cursor"`

	Methods         []MethodRecord         `json:"methods,omitempty"`
	Categories      []CategoryRecord       `json:"categories,omitempty"`
	Tags            []TagRecord            `json:"tags,omitempty"`
	Keywords        []KeywordRecord        `json:"keywords,omitempty"`
	Templates       []TemplateRecord       `json:"templates,omitempty"`
	StartingAmounts []StartingAmountRecord `json:"starting_amounts,omitempty"`
	Budgets         []BudgetRecord         `json:"budgets,omitempty"`
	Transactions    []TransactionRecord    `json:"transactions,omitempty"`
}

// Empty reports whether the batch carries no entity changes.
func (b *DeltaBatch) Empty() bool {
	if b == nil {
		return true
	}
	return len(b.Methods) == 0 && len(b.Categories) == 0 && len(b.Tags) == 0 &&
		len(b.Keywords) == 0 && len(b.Templates) == 0 &&
		len(b.StartingAmounts) == 0 && len(b.Budgets) == 0 &&
		len(b.Transactions) == 0
}
