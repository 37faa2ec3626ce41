package store

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/moneycal/internal/domain"
)

// RecomputeRunningBalance walks a month's days in date order accumulating a
// signed running total for the given payment-method filter, writing each
// day's end-of-day balance and returning the per-day sequence. It must be
// re-run after every mutation that can change a day's transaction set.
//
// Three accumulation policies exist:
//   - plain accounts seed from the method's starting amount;
//   - unified methods seed from the sum of their constituents' starting
//     amounts and also absorb transactions entered without a method;
//   - credit accounts seed from the credit limit minus the starting balance,
//     so spend reduces the remaining available amount.
func (s *Store) RecomputeRunningBalance(m *domain.Month, method *domain.PaymentMethod) []decimal.Decimal {
	if m == nil || method == nil {
		return nil
	}

	running := s.seedBalance(m, method)

	var totals []decimal.Decimal
	for _, day := range m.Days {
		if day.Placeholder {
			continue
		}
		for _, t := range day.Transactions {
			if !t.Active || t.ExcludeFromTotals {
				continue
			}
			if !s.countsToward(t, method) {
				continue
			}
			running = running.Add(t.Amount)
		}
		day.EndBalance = running
		totals = append(totals, running)
	}
	return totals
}

func (s *Store) seedBalance(m *domain.Month, method *domain.PaymentMethod) decimal.Decimal {
	switch method.Type {
	case domain.AccountUnified:
		sum := decimal.Zero
		for _, id := range method.ConstituentIDs {
			if sa := m.StartingAmountFor(id); sa != nil {
				sum = sum.Add(sa.Amount)
			}
		}
		return sum
	case domain.AccountCredit:
		start := decimal.Zero
		if sa := m.StartingAmountFor(method.ID); sa != nil {
			start = sa.Amount
		}
		return method.CreditLimit.Sub(start)
	default:
		if sa := m.StartingAmountFor(method.ID); sa != nil {
			return sa.Amount
		}
		return decimal.Zero
	}
}

func (s *Store) countsToward(t *domain.Transaction, method *domain.PaymentMethod) bool {
	if method.Type == domain.AccountUnified {
		// Transactions entered without a method are folded into the
		// unified view rather than being dropped from every total.
		if t.Method == nil {
			return true
		}
		if !t.Method.IsCheckingLike() {
			return false
		}
		for _, id := range method.ConstituentIDs {
			if t.Method.ID == id {
				return true
			}
		}
		return false
	}
	return t.Method != nil && t.Method.ID == method.ID
}
