package sync

import (
	"context"
	"fmt"

	"github.com/dvloznov/moneycal/internal/domain"
	"github.com/dvloznov/moneycal/internal/remote"
)

// Refresh runs the layered fetch fan-out for the viewed year. The viewed
// month slot is fetched and merged before Refresh returns, so the caller can
// unblock its loading screen; the adjacent slots, the remaining slots and the
// reference data follow as a best-effort concurrent group. A refresh started
// while a previous one is still running cancels it — last refresh wins.
func (s *Session) Refresh(ctx context.Context, reason RefreshReason, viewedSlot int) error {
	var (
		rctx        context.Context
		year, month int
	)
	s.do(func() {
		if reason == ReasonForeground {
			s.background = false
		}
		if s.refreshCancel != nil {
			s.refreshCancel()
		}
		rctx, s.refreshCancel = context.WithCancel(ctx)
		m := s.store.MonthSlot(viewedSlot)
		if m != nil {
			year, month = m.Year, m.Number
		}
	})
	if year == 0 {
		return fmt.Errorf("Refresh: no month slot %d", viewedSlot)
	}

	if err := s.fetchAndMergeMonth(rctx, year, month, reason); err != nil {
		if remote.IsCanceled(err) {
			return nil
		}
		if remote.IsCredentialsExpired(err) {
			s.do(func() { s.teardownBackground() })
			s.alertf("Signed out", "Your session expired. Please sign in again.")
			return fmt.Errorf("Refresh: %w", err)
		}
		s.alertf("Refresh failed", "Could not load the current month.")
		return fmt.Errorf("Refresh: %w", err)
	}

	go s.backgroundRefresh(rctx, reason, viewedSlot)
	return nil
}

// fetchAndMergeMonth downloads one calendar month in full and merges it with
// the deletion sweep.
func (s *Session) fetchAndMergeMonth(ctx context.Context, year, month int, reason RefreshReason) error {
	batch, err := s.svc.FetchMonth(ctx, year, month)
	if err != nil {
		return err
	}
	s.do(func() { s.applyMonthBatch(batch, year, month, reason) })
	return nil
}

// backgroundRefresh completes the fan-out after the viewed month landed:
// first the two adjacent slots, then every remaining slot plus the reference
// data. Failures here are logged, never alerted; a slow or failing side fetch
// must not disturb the primary view.
func (s *Session) backgroundRefresh(ctx context.Context, reason RefreshReason, viewedSlot int) {
	adjacent := []int{viewedSlot - 1, viewedSlot + 1}
	s.fetchSlots(ctx, adjacent, reason)

	var rest []int
	for slot := 0; slot < domain.SlotCount; slot++ {
		if slot == viewedSlot || slot == viewedSlot-1 || slot == viewedSlot+1 {
			continue
		}
		rest = append(rest, slot)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		batch, err := s.svc.FetchReference(ctx)
		if err != nil {
			if !remote.IsCanceled(err) {
				s.log.Warn().Err(err).Msg("reference refresh failed")
			}
			return
		}
		s.do(func() { s.applyBatch(batch, reason) })
	}()
	s.fetchSlots(ctx, rest, reason)
	<-done
}

// fetchSlots downloads a set of month slots concurrently and waits for all.
func (s *Session) fetchSlots(ctx context.Context, slots []int, reason RefreshReason) {
	done := make(chan int, len(slots))
	launched := 0
	for _, slot := range slots {
		var m *domain.Month
		s.do(func() { m = s.store.MonthSlot(slot) })
		if m == nil {
			continue
		}
		launched++
		go func(year, month int) {
			if err := s.fetchAndMergeMonth(ctx, year, month, reason); err != nil && !remote.IsCanceled(err) {
				s.log.Warn().Err(err).Int("year", year).Int("month", month).Msg("month refresh failed")
			}
			done <- month
		}(m.Year, m.Number)
	}
	for i := 0; i < launched; i++ {
		<-done
	}
}
