package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/moneycal/internal/cache"
	"github.com/dvloznov/moneycal/internal/domain"
	"github.com/dvloznov/moneycal/internal/pending"
	"github.com/dvloznov/moneycal/internal/remote"
	"github.com/dvloznov/moneycal/internal/store"
)

// Offline edit survives a restart: the save fails, the durable record stays,
// a second session replays it successfully and the temp id is gone.
func TestReplayOfflineEditSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	f.svc.submitFn = func(ctx context.Context, rt string, p any) (*remote.SubmitResponse, error) {
		return nil, remote.NewError(remote.KindUnavailable, "submit", errors.New("offline"))
	}
	m := f.seedMethod("pm-1", "Checking", domain.AccountChecking)

	txn := &domain.Transaction{Title: "Coffee", Amount: decimal.NewFromInt(-4), Date: date(2025, 4, 3), Method: m}
	if err := f.session.AddTransaction(txn); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	tempID := txn.ID
	if err := f.session.SaveTransaction(context.Background(), tempID, store.ScopePrimary); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}
	f.waitUntil(t, "failed submit resolved", func() bool { return !f.session.inflight[tempID] })
	if got := f.pendingIDs(t); len(got) != 1 || got[0] != tempID {
		t.Fatalf("pending after failure = %v, want [%s]", got, tempID)
	}

	// Simulated restart: fresh store and session, same durable queue, network
	// restored.
	restored := &mockService{
		submitFn: func(ctx context.Context, rt string, p any) (*remote.SubmitResponse, error) {
			return &remote.SubmitResponse{ID: permID(1), UpdatedAt: time.Now().UTC()}, nil
		},
	}
	store2 := store.New(zerolog.Nop(), 2025)
	session2 := New(Options{
		Log:      zerolog.Nop(),
		Store:    store2,
		Queue:    f.queue,
		Cache:    cache.NewMemoryCache(),
		Service:  restored,
		Notifier: &recordingNotifier{},
		User:     "tester",
	})
	t.Cleanup(session2.Close)

	if err := session2.Replay(context.Background()); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var done bool
		session2.do(func() { done = store2.Lookup(permID(1)) != nil })
		if done {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	session2.do(func() {
		if store2.Lookup(tempID) != nil {
			t.Error("temporary id survived the replay")
		}
		got := store2.Lookup(permID(1))
		if got == nil {
			t.Fatal("replayed record did not land under its permanent id")
		}
		if got.Title != "Coffee" {
			t.Errorf("title = %q", got.Title)
		}
	})
	if got := f.pendingIDs(t); len(got) != 0 {
		t.Errorf("pending after replay = %v, want none", got)
	}
}

func TestReplayOutsideWindowGoesOffline(t *testing.T) {
	f := newFixture(t)
	f.svc.submitFn = func(ctx context.Context, rt string, p any) (*remote.SubmitResponse, error) {
		return nil, remote.NewError(remote.KindUnavailable, "submit", errors.New("still offline"))
	}
	rec := remote.TransactionRecord{
		ID:       "tmp-old",
		Title:    "Archived month edit",
		Amount:   decimal.NewFromInt(-7),
		Date:     "2023-07-04",
		MethodID: "pm-1",
		Action:   domain.ActionAdd,
		Active:   true,
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	staged := &pending.Record{
		ID:       "tmp-old",
		Kind:     pending.KindTransaction,
		Payload:  payload,
		StagedAt: time.Now().UTC(),
	}
	if err := f.queue.Put(context.Background(), staged); err != nil {
		t.Fatal(err)
	}

	if err := f.session.Replay(context.Background()); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	f.session.do(func() {
		got := f.store.FindTransaction("tmp-old", store.ScopeOffline)
		if got.ID != "tmp-old" {
			t.Error("out-of-window replay should land in the offline list")
		}
	})
	if n := f.countLocations("tmp-old"); n != 0 {
		t.Errorf("offline record occupies %d buckets", n)
	}
}

func TestLoadCachedReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	method, _ := json.Marshal(remote.MethodRecord{ID: "pm-1", Name: "Checking", Type: domain.AccountChecking, Active: true})
	category, _ := json.Marshal(remote.CategoryRecord{ID: "cat-1", Name: "Food", Active: true})
	keyword, _ := json.Marshal(remote.KeywordRecord{ID: "kw-1", Text: "grocer", CategoryID: "cat-1", Active: true})
	for _, e := range []*cache.Entry{
		{Kind: cache.KindPaymentMethod, ID: "pm-1", Payload: method},
		{Kind: cache.KindCategory, ID: "cat-1", Payload: category},
		{Kind: cache.KindKeyword, ID: "kw-1", Payload: keyword},
	} {
		if err := f.cache.Save(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	if err := f.session.LoadCachedReference(ctx); err != nil {
		t.Fatalf("LoadCachedReference: %v", err)
	}
	f.session.do(func() {
		if m := f.store.Method("pm-1"); m == nil || m.Name != "Checking" {
			t.Error("cached method not loaded")
		}
		kw := f.store.Keyword("kw-1")
		if kw == nil || kw.Category == nil || kw.Category.ID != "cat-1" {
			t.Error("cached keyword not linked to its category")
		}
		if kw != nil && kw.Category != nil && kw.Category.Name != "Food" {
			t.Error("keyword category should resolve to the canonical record")
		}
	})
}
