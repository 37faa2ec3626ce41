package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/moneycal/internal/domain"
	"github.com/dvloznov/moneycal/internal/pending"
	"github.com/dvloznov/moneycal/internal/remote"
	"github.com/dvloznov/moneycal/internal/store"
)

// submission is one remote mutation in flight: the staged entity at the
// moment of submit, identified by the id it carried then.
type submission struct {
	oldID   string
	reqType string
	kind    pending.EntityKind
	payload []byte
}

type outcome struct {
	sub  *submission
	resp *remote.SubmitResponse
	err  error
}

// SaveTransaction runs the mutation pipeline for one transaction:
// validate, relocate on date change, mirror a linked counterpart, stage the
// durable record, then submit asynchronously. It returns once the local apply
// and staging are done; the remote result is reconciled on the owner
// goroutine when it arrives.
func (s *Session) SaveTransaction(ctx context.Context, id string, scope store.Scope) error {
	var err error
	s.do(func() { err = s.saveTransactionLocked(ctx, id, scope) })
	return err
}

func (s *Session) saveTransactionLocked(ctx context.Context, id string, scope store.Scope) error {
	t := s.store.FindTransaction(id, scope)
	if t.ID != id {
		return fmt.Errorf("SaveTransaction: unknown transaction %q", id)
	}

	if t.Action != domain.ActionDelete {
		if !s.validateTransaction(t) {
			return nil
		}
		if !t.HasChanges() {
			s.log.Debug().Str("id", id).Msg("save skipped, no changes")
			return nil
		}
	}

	t.UpdatedAt = time.Now().UTC()
	t.UpdatedBy = s.user
	if t.Action == domain.ActionDelete {
		t.Active = false
	}

	// The move is visible before any network round trip.
	if t.DateChanged() {
		if err := s.store.Relocate(t); err != nil {
			return fmt.Errorf("SaveTransaction: %w", err)
		}
	} else if !t.Active {
		s.store.SoftDelete(t)
	}

	records := []*domain.Transaction{t}
	toast := "Saved"
	if counterpart := s.mirrorCounterpart(t); counterpart != nil {
		records = append(records, counterpart)
		// A transfer wholly inside one account class is bookkeeping noise,
		// not something to announce.
		if sameAccountClass(t.Method, counterpart.Method) {
			toast = ""
		}
	}

	var subs []*submission
	for _, rec := range records {
		sub, err := s.stageTransaction(ctx, rec)
		if err != nil {
			return fmt.Errorf("SaveTransaction: %w", err)
		}
		if s.inflight[rec.ID] {
			// The staged record is now the source of truth; the completion
			// handler resubmits from it instead of racing a second call.
			s.dirty[rec.ID] = true
			continue
		}
		s.inflight[rec.ID] = true
		subs = append(subs, sub)
	}
	s.recomputeMonth(s.store.MonthFor(t.Date.Year(), int(t.Date.Month())))

	if len(subs) > 0 {
		s.submitAsync(ctx, subs, toast)
	}
	return nil
}

// validateTransaction applies the save-time checks. Returns false when the
// save must stop here; the entity is left valid either way.
func (s *Session) validateTransaction(t *domain.Transaction) bool {
	if t.Title == "" && !t.IsNew() {
		if p := t.Prior(); p != nil && p.Title != "" {
			t.Title = p.Title
			s.notifier.ShowToast("Title restored; a transaction needs a title")
		}
	}
	if err := s.validate.Struct(t); err != nil {
		s.log.Debug().Err(err).Str("id", t.ID).Msg("save rejected by validation")
		t.Restore()
		s.notifier.ShowToast("Transaction needs a title and a payment method")
		return false
	}
	return true
}

// mirrorCounterpart keeps the linked half of a transfer/payment pair
// consistent with the edited side and returns it, or nil when unlinked. The
// counterpart's amount carries the opposite sign.
func (s *Session) mirrorCounterpart(t *domain.Transaction) *domain.Transaction {
	if t.LinkedID == "" {
		return nil
	}
	c := s.store.Lookup(t.LinkedID)
	if c == nil {
		s.log.Warn().Str("id", t.ID).Str("linked_id", t.LinkedID).Msg("linked counterpart not found")
		return nil
	}
	c.Title = t.Title
	c.Amount = t.Amount.Neg()
	c.Date = t.Date
	c.Active = t.Active
	c.Action = actionForCounterpart(c, t)
	c.UpdatedAt = t.UpdatedAt
	c.UpdatedBy = t.UpdatedBy
	if c.DateChanged() {
		if err := s.store.Relocate(c); err != nil {
			s.log.Warn().Err(err).Str("id", c.ID).Msg("counterpart relocation failed")
		}
	} else if !c.Active {
		s.store.SoftDelete(c)
	}
	return c
}

func actionForCounterpart(c, edited *domain.Transaction) domain.Action {
	if edited.Action == domain.ActionDelete {
		return domain.ActionDelete
	}
	if c.IsNew() {
		return domain.ActionAdd
	}
	return domain.ActionEdit
}

func sameAccountClass(a, b *domain.PaymentMethod) bool {
	if a == nil || b == nil {
		return false
	}
	return a.IsCheckingLike() == b.IsCheckingLike()
}

// stageTransaction writes (or overwrites) the durable record mirroring the
// transaction's current fields. It stays until the server confirms.
func (s *Session) stageTransaction(ctx context.Context, t *domain.Transaction) (*submission, error) {
	payload, err := json.Marshal(remote.RecordFromTransaction(t))
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", t.ID, err)
	}
	rec := &pending.Record{
		ID:       t.ID,
		Kind:     pending.KindTransaction,
		Payload:  payload,
		StagedAt: time.Now().UTC(),
	}
	if err := s.queue.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("stage %s: %w", t.ID, err)
	}
	return &submission{
		oldID:   t.ID,
		reqType: remote.ReqTransactionSave,
		kind:    pending.KindTransaction,
		payload: payload,
	}, nil
}

// submitAsync issues the submissions concurrently off the owner goroutine and
// posts a single completion back once every sibling resolved. Runs on the
// owner goroutine.
func (s *Session) submitAsync(ctx context.Context, subs []*submission, toast string) {
	stopBusy := s.startBusy()
	go func() {
		results := make(chan outcome, len(subs))
		for _, sub := range subs {
			go func(sub *submission) {
				resp, err := s.svc.Submit(ctx, sub.reqType, json.RawMessage(sub.payload))
				results <- outcome{sub: sub, resp: resp, err: err}
			}(sub)
		}
		collected := make([]outcome, 0, len(subs))
		for range subs {
			collected = append(collected, <-results)
		}
		s.post(func() {
			stopBusy()
			allOK := true
			for _, oc := range collected {
				if oc.err != nil {
					allOK = false
				}
			}
			for _, oc := range collected {
				s.reconcile(oc)
			}
			if allOK && toast != "" {
				s.notifier.ShowToast(toast)
			}
		})
	}()
}

// reconcile applies one submit result on the owner goroutine.
func (s *Session) reconcile(oc outcome) {
	delete(s.inflight, oc.sub.oldID)

	if oc.err != nil {
		s.reconcileFailure(oc)
		return
	}

	switch oc.sub.kind {
	case pending.KindTransaction:
		s.reconcileTransactionSuccess(oc)
	case pending.KindStartingAmount:
		s.reconcileStartingAmountSuccess(oc)
	case pending.KindBudget:
		s.reconcileBudgetSuccess(oc)
	}
}

func (s *Session) reconcileFailure(oc outcome) {
	id := oc.sub.oldID
	delete(s.dirty, id)

	switch remote.KindOf(oc.err) {
	case remote.KindCanceled:
		// Expected when the user navigated away mid-request. The durable
		// record stays for the next replay.
		s.log.Debug().Str("id", id).Msg("submit cancelled")
	case remote.KindCredentialsExpired:
		s.log.Warn().Str("id", id).Msg("credentials expired during submit")
		s.teardownBackground()
		s.notifier.ShowAlert("Signed out", "Your session expired. Please sign in again.")
	default:
		s.log.Warn().Err(oc.err).Str("id", id).Msg("submit failed, will retry later")
		if oc.sub.kind == pending.KindTransaction {
			if t := s.store.Lookup(id); t != nil && t.Prior() != nil {
				t.Restore()
				if err := s.store.Relocate(t); err != nil {
					s.log.Warn().Err(err).Str("id", id).Msg("rollback relocation failed")
				}
				s.recomputeMonth(s.store.MonthFor(t.Date.Year(), int(t.Date.Month())))
			}
		}
		const retryMsg = "The change could not reach the server and will be retried later."
		if s.background {
			// No surface to draw an alert on; a push reaches the user anyway.
			s.notifier.SendPush("Not saved yet", retryMsg)
		} else {
			s.notifier.ShowAlert("Not saved yet", retryMsg)
		}
	}
}

func (s *Session) reconcileTransactionSuccess(oc outcome) {
	oldID := oc.sub.oldID
	t := s.store.Lookup(oldID)

	newID := oldID
	if oc.resp != nil && oc.resp.ID != "" {
		newID = oc.resp.ID
	}
	if domain.IsTempID(oldID) && newID != oldID {
		s.store.ReplaceTransactionID(oldID, newID)
	}

	if t == nil {
		t = s.store.Lookup(newID)
	}
	if t != nil {
		t.Action = domain.ActionEdit
		if oc.resp != nil && !oc.resp.UpdatedAt.IsZero() {
			t.UpdatedAt = oc.resp.UpdatedAt
		}
		t.Snapshot()
	}

	delete(s.interactions, oldID)
	delete(s.interactions, newID)

	ctx := context.Background()
	wasDirty := s.dirty[oldID] || s.dirty[newID]
	delete(s.dirty, oldID)
	delete(s.dirty, newID)

	if err := s.queue.Delete(ctx, oldID); err != nil {
		s.log.Warn().Err(err).Str("id", oldID).Msg("pending record cleanup failed")
	}
	if newID != oldID {
		if err := s.queue.Delete(ctx, newID); err != nil {
			s.log.Warn().Err(err).Str("id", newID).Msg("pending record cleanup failed")
		}
	}

	if wasDirty && t != nil {
		// A second save landed while this one was in flight; the live record
		// carries the newer fields, so stage and submit again.
		sub, err := s.stageTransaction(ctx, t)
		if err != nil {
			s.log.Error().Err(err).Str("id", t.ID).Msg("restage after dirty save failed")
			return
		}
		s.inflight[t.ID] = true
		s.submitAsync(ctx, []*submission{sub}, "")
	}
}

// AddTransaction links a locally created transaction into its day bucket
// under a temporary id. SaveTransaction submits it afterwards; the record is
// deliberately left without a snapshot so the save never short-circuits.
func (s *Session) AddTransaction(t *domain.Transaction) error {
	var err error
	s.do(func() {
		if t.ID == "" {
			t.ID = domain.NewTempID()
		}
		t.Action = domain.ActionAdd
		t.Active = true
		t.EnteredAt = time.Now().UTC()
		if e := s.store.UpsertIntoBucket(t); e != nil {
			err = fmt.Errorf("AddTransaction: %w", e)
			return
		}
		s.recomputeMonth(s.store.MonthFor(t.Date.Year(), int(t.Date.Month())))
	})
	return err
}

// AddTransferPair creates the two linked sides of a transfer: money leaves
// the from method and arrives at the to method on the same date. Saving
// either side afterwards submits both as siblings.
func (s *Session) AddTransferPair(title string, amount decimal.Decimal, date time.Time, from, to *domain.PaymentMethod) (*domain.Transaction, *domain.Transaction, error) {
	outgoing := &domain.Transaction{
		Title:  title,
		Amount: amount.Neg(),
		Date:   date,
		Method: from,
	}
	incoming := &domain.Transaction{
		Title:  title,
		Amount: amount,
		Date:   date,
		Method: to,
	}
	if err := s.AddTransaction(outgoing); err != nil {
		return nil, nil, fmt.Errorf("AddTransferPair: %w", err)
	}
	if err := s.AddTransaction(incoming); err != nil {
		return nil, nil, fmt.Errorf("AddTransferPair: %w", err)
	}
	s.do(func() {
		outgoing.LinkedID = incoming.ID
		incoming.LinkedID = outgoing.ID
	})
	return outgoing, incoming, nil
}

// DeleteTransaction marks a transaction deleted and runs it through the
// pipeline. Deletes always pass validation.
func (s *Session) DeleteTransaction(ctx context.Context, id string, scope store.Scope) error {
	s.do(func() {
		if t := s.store.FindTransaction(id, scope); t.ID == id {
			t.Action = domain.ActionDelete
		}
	})
	return s.SaveTransaction(ctx, id, scope)
}

// SaveStartingAmount stages and submits one monthly opening balance.
func (s *Session) SaveStartingAmount(ctx context.Context, sa *domain.StartingAmount) error {
	var err error
	s.do(func() { err = s.saveStartingAmountLocked(ctx, sa) })
	return err
}

func (s *Session) saveStartingAmountLocked(ctx context.Context, sa *domain.StartingAmount) error {
	if sa.Method == nil {
		return fmt.Errorf("SaveStartingAmount: payment method required")
	}
	if sa.Method.Type == domain.AccountUnified {
		return fmt.Errorf("SaveStartingAmount: unified methods derive their balance")
	}
	if sa.Action != domain.ActionDelete && !sa.HasChanges() {
		return nil
	}
	sa.UpdatedBy = s.user
	if sa.Action == domain.ActionDelete {
		sa.Active = false
	}
	if err := s.store.UpsertStartingAmount(sa); err != nil {
		return fmt.Errorf("SaveStartingAmount: %w", err)
	}
	s.recomputeMonth(s.store.MonthFor(sa.Year, sa.Number))

	payload, err := json.Marshal(remote.RecordFromStartingAmount(sa))
	if err != nil {
		return fmt.Errorf("SaveStartingAmount: %w", err)
	}
	return s.stageAndSubmit(ctx, sa.ID, pending.KindStartingAmount, remote.ReqStartingAmountSave, payload)
}

func (s *Session) reconcileStartingAmountSuccess(oc outcome) {
	s.finishMonthlySuccess(oc, func(newID string) {
		for slot := 0; slot < domain.SlotCount; slot++ {
			m := s.store.MonthSlot(slot)
			for _, sa := range m.StartingAmounts {
				if sa.ID == oc.sub.oldID {
					sa.ID = newID
					sa.Action = domain.ActionEdit
					sa.Snapshot()
				}
			}
		}
	})
}

// SaveBudget stages and submits one per-category monthly target.
func (s *Session) SaveBudget(ctx context.Context, b *domain.Budget) error {
	var err error
	s.do(func() { err = s.saveBudgetLocked(ctx, b) })
	return err
}

func (s *Session) saveBudgetLocked(ctx context.Context, b *domain.Budget) error {
	if b.Category == nil {
		return fmt.Errorf("SaveBudget: category required")
	}
	if b.Action != domain.ActionDelete && !b.HasChanges() {
		return nil
	}
	if b.Action == domain.ActionDelete {
		b.Active = false
	}
	if err := s.store.UpsertBudget(b); err != nil {
		return fmt.Errorf("SaveBudget: %w", err)
	}

	payload, err := json.Marshal(remote.RecordFromBudget(b))
	if err != nil {
		return fmt.Errorf("SaveBudget: %w", err)
	}
	return s.stageAndSubmit(ctx, b.ID, pending.KindBudget, remote.ReqBudgetSave, payload)
}

func (s *Session) reconcileBudgetSuccess(oc outcome) {
	s.finishMonthlySuccess(oc, func(newID string) {
		for slot := 0; slot < domain.SlotCount; slot++ {
			m := s.store.MonthSlot(slot)
			for _, b := range m.Budgets {
				if b.ID == oc.sub.oldID {
					b.ID = newID
					b.Action = domain.ActionEdit
					b.Snapshot()
				}
			}
		}
	})
}

// stageAndSubmit is the shared tail of the non-transaction pipelines.
func (s *Session) stageAndSubmit(ctx context.Context, id string, kind pending.EntityKind, reqType string, payload []byte) error {
	rec := &pending.Record{ID: id, Kind: kind, Payload: payload, StagedAt: time.Now().UTC()}
	if err := s.queue.Put(ctx, rec); err != nil {
		return fmt.Errorf("stage %s: %w", id, err)
	}
	if s.inflight[id] {
		s.dirty[id] = true
		return nil
	}
	s.inflight[id] = true
	s.submitAsync(ctx, []*submission{{
		oldID:   id,
		reqType: reqType,
		kind:    kind,
		payload: payload,
	}}, "")
	return nil
}

func (s *Session) finishMonthlySuccess(oc outcome, rename func(newID string)) {
	oldID := oc.sub.oldID
	newID := oldID
	if oc.resp != nil && oc.resp.ID != "" {
		newID = oc.resp.ID
	}
	if domain.IsTempID(oldID) && newID != oldID {
		rename(newID)
	} else {
		rename(oldID)
	}
	delete(s.dirty, oldID)

	ctx := context.Background()
	if err := s.queue.Delete(ctx, oldID); err != nil {
		s.log.Warn().Err(err).Str("id", oldID).Msg("pending record cleanup failed")
	}
}

// recomputeMonth refreshes the running balances of one month for the active
// balance filter. Runs on the owner goroutine.
func (s *Session) recomputeMonth(m *domain.Month) {
	if m == nil || s.balanceMethodID == "" {
		return
	}
	method := s.store.Method(s.balanceMethodID)
	if method == nil {
		return
	}
	s.store.RecomputeRunningBalance(m, method)
}

// SetBalanceMethod selects which payment method running balances are computed
// for, and recomputes every materialized month.
func (s *Session) SetBalanceMethod(id string) {
	s.do(func() {
		s.balanceMethodID = id
		for slot := 0; slot < domain.SlotCount; slot++ {
			s.recomputeMonth(s.store.MonthSlot(slot))
		}
	})
}

// teardownBackground cancels the long-poll and refresh tasks, used by the
// logout path. Runs on the owner goroutine. The generation bump orphans the
// dying loop's exit posts.
func (s *Session) teardownBackground() {
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
		s.pollRunning = false
		s.pollGen++
	}
	if s.refreshCancel != nil {
		s.refreshCancel()
		s.refreshCancel = nil
	}
}
