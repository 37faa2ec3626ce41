package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dvloznov/moneycal/internal/cache"
	"github.com/dvloznov/moneycal/internal/domain"
	"github.com/dvloznov/moneycal/internal/pending"
	"github.com/dvloznov/moneycal/internal/remote"
	"github.com/dvloznov/moneycal/internal/store"
)

// Replay re-submits every durable pending record. Run at startup before any
// fetch: an entry for id X means X's last edit may not be on the server yet,
// so server data for X cannot be trusted until the entry is confirmed.
func (s *Session) Replay(ctx context.Context) error {
	recs, err := s.queue.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("Replay: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}
	s.log.Info().Int("count", len(recs)).Msg("replaying pending writes")
	for _, rec := range recs {
		rec := rec
		s.do(func() { s.replayRecord(ctx, rec) })
	}
	return nil
}

func (s *Session) replayRecord(ctx context.Context, rec *pending.Record) {
	if rec.Kind == pending.KindTransaction {
		if err := s.materializeReplayed(rec); err != nil {
			s.log.Warn().Err(err).Str("id", rec.ID).Msg("replay materialization failed")
		}
	}
	if s.inflight[rec.ID] {
		s.dirty[rec.ID] = true
		return
	}
	s.inflight[rec.ID] = true
	s.submitAsync(ctx, []*submission{{
		oldID:   rec.ID,
		reqType: requestTypeFor(rec.Kind),
		kind:    rec.Kind,
		payload: rec.Payload,
	}}, "")
}

// materializeReplayed links a staged transaction back into the store so the
// user sees their unconfirmed edit immediately. Records whose month is not
// materialized locally go to the offline list instead.
func (s *Session) materializeReplayed(rec *pending.Record) error {
	var tr remote.TransactionRecord
	if err := json.Unmarshal(rec.Payload, &tr); err != nil {
		return fmt.Errorf("materialize %s: %w", rec.ID, err)
	}
	if s.store.Lookup(tr.ID) != nil {
		return nil
	}
	t, err := s.transactionFromRecord(&tr)
	if err != nil {
		return fmt.Errorf("materialize %s: %w", rec.ID, err)
	}
	t.Action = tr.Action
	if t.Action == "" {
		t.Action = domain.ActionAdd
	}
	if err := s.store.UpsertIntoBucket(t); err != nil {
		if errors.Is(err, store.ErrUnknownBucket) {
			s.store.AddOffline(t)
			return nil
		}
		return fmt.Errorf("materialize %s: %w", rec.ID, err)
	}
	return nil
}

func requestTypeFor(kind pending.EntityKind) string {
	switch kind {
	case pending.KindStartingAmount:
		return remote.ReqStartingAmountSave
	case pending.KindBudget:
		return remote.ReqBudgetSave
	default:
		return remote.ReqTransactionSave
	}
}

// LoadCachedReference pre-populates the store's reference tables from the
// local cache so the calendar is usable before the first fetch completes.
func (s *Session) LoadCachedReference(ctx context.Context) error {
	var firstErr error
	s.do(func() {
		firstErr = s.loadCachedReferenceLocked(ctx)
	})
	return firstErr
}

func (s *Session) loadCachedReferenceLocked(ctx context.Context) error {
	methods, err := s.cache.GetMany(ctx, cache.KindPaymentMethod)
	if err != nil {
		return fmt.Errorf("LoadCachedReference: %w", err)
	}
	for _, e := range methods {
		var rec remote.MethodRecord
		if err := json.Unmarshal(e.Payload, &rec); err != nil {
			s.log.Warn().Err(err).Str("id", e.ID).Msg("cached method unreadable")
			continue
		}
		s.mergeMethod(&rec)
	}

	categories, err := s.cache.GetMany(ctx, cache.KindCategory)
	if err != nil {
		return fmt.Errorf("LoadCachedReference: %w", err)
	}
	for _, e := range categories {
		var rec remote.CategoryRecord
		if err := json.Unmarshal(e.Payload, &rec); err != nil {
			s.log.Warn().Err(err).Str("id", e.ID).Msg("cached category unreadable")
			continue
		}
		s.mergeCategory(&rec)
	}

	tags, err := s.cache.GetMany(ctx, cache.KindTag)
	if err != nil {
		return fmt.Errorf("LoadCachedReference: %w", err)
	}
	for _, e := range tags {
		var rec remote.TagRecord
		if err := json.Unmarshal(e.Payload, &rec); err != nil {
			s.log.Warn().Err(err).Str("id", e.ID).Msg("cached tag unreadable")
			continue
		}
		s.mergeTag(&rec)
	}

	keywords, err := s.cache.GetMany(ctx, cache.KindKeyword)
	if err != nil {
		return fmt.Errorf("LoadCachedReference: %w", err)
	}
	for _, e := range keywords {
		var rec remote.KeywordRecord
		if err := json.Unmarshal(e.Payload, &rec); err != nil {
			s.log.Warn().Err(err).Str("id", e.ID).Msg("cached keyword unreadable")
			continue
		}
		s.mergeKeyword(&rec)
	}
	return nil
}
