package domain

import (
	"github.com/shopspring/decimal"
)

// AccountType classifies a payment method for running-balance accumulation.
type AccountType string

const (
	// AccountChecking is a plain bank account: balance grows with income,
	// shrinks with spend.
	AccountChecking AccountType = "checking"
	// AccountCash behaves like checking and is folded into the unified view.
	AccountCash AccountType = "cash"
	// AccountCredit accumulates against a credit limit: spend reduces the
	// remaining available amount.
	AccountCredit AccountType = "credit"
	// AccountUnified is a virtual method combining checking-like accounts.
	// It stores no starting amount of its own; the opening balance is derived
	// by summing the constituents.
	AccountUnified AccountType = "unified"
)

// PaymentMethod is a reference entity shared by pointer across every
// Transaction and StartingAmount that uses it. Display attributes are mutated
// in place on the canonical record held by the store, so a single table update
// propagates to all holders.
type PaymentMethod struct {
	ID          string
	Name        string
	Type        AccountType
	CreditLimit decimal.Decimal
	// ConstituentIDs lists the methods a unified method aggregates.
	ConstituentIDs []string
	SortOrder      int
	Active         bool
}

// IsCheckingLike reports whether the method participates in the unified view.
func (m *PaymentMethod) IsCheckingLike() bool {
	return m.Type == AccountChecking || m.Type == AccountCash
}

// Category is a reference entity shared by pointer across transactions,
// budgets, keywords and repeating templates.
type Category struct {
	ID        string
	Name      string
	SortOrder int
	Active    bool
}

// Tag is a free-form label attached to transactions.
type Tag struct {
	ID     string
	Name   string
	Active bool
}

// Keyword maps a recurring title fragment to a category, used to prefill
// category suggestions for new transactions.
type Keyword struct {
	ID       string
	Text     string
	Category *Category
	Active   bool
}
