package sync

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dvloznov/moneycal/internal/cache"
	"github.com/dvloznov/moneycal/internal/domain"
	"github.com/dvloznov/moneycal/internal/remote"
	"github.com/dvloznov/moneycal/internal/store"
)

// applyBatch merges one delta batch onto the entity store. Reference entities
// go first so transactions arriving in the same batch resolve against fresh
// canonical records. Runs on the owner goroutine; the whole batch is applied
// before any reader sees partial state.
func (s *Session) applyBatch(batch *remote.DeltaBatch, reason RefreshReason) {
	if batch == nil {
		return
	}
	for i := range batch.Methods {
		s.mergeMethod(&batch.Methods[i])
	}
	for i := range batch.Categories {
		s.mergeCategory(&batch.Categories[i])
	}
	for i := range batch.Tags {
		s.mergeTag(&batch.Tags[i])
	}
	for i := range batch.Keywords {
		s.mergeKeyword(&batch.Keywords[i])
	}
	for i := range batch.Templates {
		s.mergeTemplate(&batch.Templates[i])
	}

	touched := make(map[*domain.Month]bool)
	for i := range batch.StartingAmounts {
		s.mergeStartingAmount(&batch.StartingAmounts[i], touched)
	}
	for i := range batch.Budgets {
		s.mergeBudget(&batch.Budgets[i])
	}
	for i := range batch.Transactions {
		s.mergeTransaction(&batch.Transactions[i], reason, touched)
	}

	if batch.Cursor > s.cursor {
		s.cursor = batch.Cursor
	}
	for m := range touched {
		s.recomputeMonth(m)
	}
}

// applyMonthBatch merges a full-month fetch and then sweeps: any local,
// non-newly-added transaction of that month whose id the batch does not carry
// was deleted on another device while this one was offline.
func (s *Session) applyMonthBatch(batch *remote.DeltaBatch, year, month int, reason RefreshReason) {
	seen := make(map[string]bool, len(batch.Transactions))
	for i := range batch.Transactions {
		seen[batch.Transactions[i].ID] = true
	}
	s.applyBatch(batch, reason)

	m := s.store.MonthFor(year, month)
	if m == nil {
		return
	}
	var stale []string
	for _, t := range s.store.TransactionsInMonth(m) {
		if !t.IsNew() && !seen[t.ID] {
			stale = append(stale, t.ID)
		}
	}
	for _, id := range stale {
		s.log.Debug().Str("id", id).Int("year", year).Int("month", month).
			Msg("removing transaction deleted elsewhere")
		s.store.Remove(id)
	}
	if len(stale) > 0 {
		s.recomputeMonth(m)
	}
}

func (s *Session) mergeMethod(rec *remote.MethodRecord) {
	s.store.UpsertPaymentMethod(&domain.PaymentMethod{
		ID:             rec.ID,
		Name:           rec.Name,
		Type:           rec.Type,
		CreditLimit:    rec.CreditLimit,
		ConstituentIDs: rec.ConstituentIDs,
		SortOrder:      rec.SortOrder,
		Active:         rec.Active,
	})
	s.cacheReference(cache.KindPaymentMethod, rec.ID, rec, rec.Active)
}

func (s *Session) mergeCategory(rec *remote.CategoryRecord) {
	s.store.UpsertCategory(&domain.Category{
		ID:        rec.ID,
		Name:      rec.Name,
		SortOrder: rec.SortOrder,
		Active:    rec.Active,
	})
	s.cacheReference(cache.KindCategory, rec.ID, rec, rec.Active)
}

func (s *Session) mergeTag(rec *remote.TagRecord) {
	s.store.UpsertTag(&domain.Tag{ID: rec.ID, Name: rec.Name, Active: rec.Active})
	s.cacheReference(cache.KindTag, rec.ID, rec, rec.Active)
}

func (s *Session) mergeKeyword(rec *remote.KeywordRecord) {
	s.store.UpsertKeyword(&domain.Keyword{
		ID:       rec.ID,
		Text:     rec.Text,
		Category: s.store.ResolveCategory(rec.CategoryID),
		Active:   rec.Active,
	})
	s.cacheReference(cache.KindKeyword, rec.ID, rec, rec.Active)
}

func (s *Session) mergeTemplate(rec *remote.TemplateRecord) {
	s.store.UpsertTemplate(&domain.Template{
		ID:         rec.ID,
		Title:      rec.Title,
		Amount:     rec.Amount,
		Method:     s.store.ResolveMethod(rec.MethodID),
		Category:   s.store.ResolveCategory(rec.CategoryID),
		Schedule:   rec.Schedule,
		DayOfMonth: rec.DayOfMonth,
		Active:     rec.Active,
	})
}

func (s *Session) mergeStartingAmount(rec *remote.StartingAmountRecord, touched map[*domain.Month]bool) {
	sa := &domain.StartingAmount{
		ID:     rec.ID,
		Method: s.store.ResolveMethod(rec.MethodID),
		Year:   rec.Year,
		Number: rec.Month,
		Amount: rec.Amount,
		Action: domain.ActionEdit,
		Active: rec.Active,
	}
	sa.Snapshot()
	if err := s.store.UpsertStartingAmount(sa); err != nil {
		s.logMergeDrop("starting amount", rec.ID, err)
		return
	}
	if m := s.store.MonthFor(rec.Year, rec.Month); m != nil {
		touched[m] = true
	}
}

func (s *Session) mergeBudget(rec *remote.BudgetRecord) {
	b := &domain.Budget{
		ID:       rec.ID,
		Category: s.store.ResolveCategory(rec.CategoryID),
		Year:     rec.Year,
		Number:   rec.Month,
		Amount:   rec.Amount,
		Action:   domain.ActionEdit,
		Active:   rec.Active,
	}
	b.Snapshot()
	if err := s.store.UpsertBudget(b); err != nil {
		s.logMergeDrop("budget", rec.ID, err)
	}
}

// mergeTransaction runs the per-id state machine: absent -> inserted,
// present+active -> updated (and possibly relocated), present+remote-inactive
// -> removed, present+mid-edit+foreground-refresh -> skipped.
func (s *Session) mergeTransaction(rec *remote.TransactionRecord, reason RefreshReason, touched map[*domain.Month]bool) {
	local := s.store.Lookup(rec.ID)
	if local != nil {
		if rec.ID == s.editingID && reason == ReasonForeground {
			s.log.Debug().Str("id", rec.ID).Msg("merge skipped, record open for editing")
			return
		}
		if m := s.store.MonthFor(local.Date.Year(), int(local.Date.Month())); m != nil {
			touched[m] = true
		}
		if !rec.Active {
			s.store.SoftDelete(local)
			return
		}
		if err := s.applyTransactionFields(local, rec); err != nil {
			s.logMergeDrop("transaction", rec.ID, err)
			return
		}
		if err := s.store.Relocate(local); err != nil {
			s.logMergeDrop("transaction", rec.ID, err)
			return
		}
		local.Snapshot()
		if m := s.store.MonthFor(local.Date.Year(), int(local.Date.Month())); m != nil {
			touched[m] = true
		}
		return
	}

	t, err := s.transactionFromRecord(rec)
	if err != nil {
		s.logMergeDrop("transaction", rec.ID, err)
		return
	}
	if !rec.Active {
		// Keep the deactivation visible so a stale delta cannot resurrect
		// the record later.
		s.store.SoftDelete(t)
		return
	}
	if err := s.store.UpsertIntoBucket(t); err != nil {
		s.logMergeDrop("transaction", rec.ID, err)
		return
	}
	t.Snapshot()
	if m := s.store.MonthFor(t.Date.Year(), int(t.Date.Month())); m != nil {
		touched[m] = true
	}
}

// applyTransactionFields copies remote fields onto the live record. The
// caller relocates and re-snapshots afterwards.
func (s *Session) applyTransactionFields(t *domain.Transaction, rec *remote.TransactionRecord) error {
	date, err := remote.ParseDate(rec.Date)
	if err != nil {
		return err
	}
	t.Title = rec.Title
	t.Amount = rec.Amount
	t.Date = date
	t.Method = s.store.ResolveMethod(rec.MethodID)
	t.Category = s.store.ResolveCategory(rec.CategoryID)
	t.Tags = t.Tags[:0]
	for _, id := range rec.TagIDs {
		t.Tags = append(t.Tags, s.store.ResolveTag(id))
	}
	t.Action = domain.ActionEdit
	t.Active = rec.Active
	t.ExcludeFromTotals = rec.ExcludeFromTotals
	t.LinkedID = rec.LinkedID
	t.EnteredAt = rec.EnteredAt
	t.UpdatedAt = rec.UpdatedAt
	t.UpdatedBy = rec.UpdatedBy
	return nil
}

func (s *Session) transactionFromRecord(rec *remote.TransactionRecord) (*domain.Transaction, error) {
	t := &domain.Transaction{ID: rec.ID}
	if err := s.applyTransactionFields(t, rec); err != nil {
		return nil, err
	}
	return t, nil
}

// logMergeDrop records a merge ambiguity. Unresolvable records are dropped,
// never fatal.
func (s *Session) logMergeDrop(kind, id string, err error) {
	ev := s.log.Warn().Str("kind", kind).Str("id", id).Err(err)
	if errors.Is(err, store.ErrUnknownBucket) {
		ev = s.log.Debug().Str("kind", kind).Str("id", id).Err(err)
	}
	ev.Msg("delta record dropped")
}

// cacheReference persists a reference entity to the local cache so the store
// can be pre-populated before the first fetch on the next launch.
func (s *Session) cacheReference(kind cache.Kind, id string, rec any, active bool) {
	ctx := context.Background()
	if !active {
		if err := s.cache.Delete(ctx, kind, id); err != nil {
			s.log.Warn().Err(err).Str("kind", string(kind)).Str("id", id).Msg("cache delete failed")
		}
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("id", id).Msg("cache encode failed")
		return
	}
	if err := s.cache.Save(ctx, &cache.Entry{Kind: kind, ID: id, Payload: payload}); err != nil {
		s.log.Warn().Err(err).Str("kind", string(kind)).Str("id", id).Msg("cache save failed")
	}
}
