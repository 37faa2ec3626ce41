package sync

import (
	"context"
	"fmt"
	stdsync "sync"
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

// mockService is a func-field test double for the remote boundary.
type mockService struct {
	submitFn     func(ctx context.Context, requestType string, payload any) (*remote.SubmitResponse, error)
	fetchMonthFn func(ctx context.Context, year, month int) (*remote.DeltaBatch, error)
	fetchRefFn   func(ctx context.Context) (*remote.DeltaBatch, error)
	longPollFn   func(ctx context.Context, cursor int64) (*remote.DeltaBatch, error)
}

func (m *mockService) Submit(ctx context.Context, requestType string, payload any) (*remote.SubmitResponse, error) {
	if m.submitFn == nil {
		return &remote.SubmitResponse{ID: "srv-id", UpdatedAt: time.Now().UTC()}, nil
	}
	return m.submitFn(ctx, requestType, payload)
}

func (m *mockService) FetchMonth(ctx context.Context, year, month int) (*remote.DeltaBatch, error) {
	if m.fetchMonthFn == nil {
		return &remote.DeltaBatch{}, nil
	}
	return m.fetchMonthFn(ctx, year, month)
}

func (m *mockService) FetchReference(ctx context.Context) (*remote.DeltaBatch, error) {
	if m.fetchRefFn == nil {
		return &remote.DeltaBatch{}, nil
	}
	return m.fetchRefFn(ctx)
}

func (m *mockService) LongPoll(ctx context.Context, cursor int64) (*remote.DeltaBatch, error) {
	if m.longPollFn == nil {
		<-ctx.Done()
		return nil, remote.NewError(remote.KindCanceled, "long poll", ctx.Err())
	}
	return m.longPollFn(ctx, cursor)
}

var _ remote.Service = (*mockService)(nil)

// recordingNotifier captures user-facing feedback for assertions.
type recordingNotifier struct {
	mu     stdsync.Mutex
	alerts []string
	toasts []string
	pushes []string
}

func (n *recordingNotifier) ShowAlert(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, title+": "+message)
}

func (n *recordingNotifier) ShowToast(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, message)
}

func (n *recordingNotifier) SendPush(title, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, title+": "+body)
}

func (n *recordingNotifier) alertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func (n *recordingNotifier) toastCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.toasts)
}

func (n *recordingNotifier) pushCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pushes)
}

type fixture struct {
	session  *Session
	store    *store.Store
	queue    *pending.MemoryQueue
	cache    *cache.MemoryCache
	svc      *mockService
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.New(zerolog.Nop(), 2025),
		queue:    pending.NewMemoryQueue(),
		cache:    cache.NewMemoryCache(),
		svc:      &mockService{},
		notifier: &recordingNotifier{},
	}
	f.session = New(Options{
		Log:      zerolog.Nop(),
		Store:    f.store,
		Queue:    f.queue,
		Cache:    f.cache,
		Service:  f.svc,
		Notifier: f.notifier,
		User:     "tester",
	})
	t.Cleanup(f.session.Close)
	return f
}

// waitUntil polls cond on the owner goroutine until it holds.
func (f *fixture) waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var ok bool
		f.session.do(func() { ok = cond() })
		if ok {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (f *fixture) seedMethod(id, name string, typ domain.AccountType) *domain.PaymentMethod {
	m := &domain.PaymentMethod{ID: id, Name: name, Type: typ, Active: true}
	f.session.do(func() { f.store.UpsertPaymentMethod(m) })
	return m
}

// seedTransaction inserts a confirmed, snapshotted transaction on the given
// date.
func (f *fixture) seedTransaction(t *testing.T, id, title string, amount int64, date time.Time, method *domain.PaymentMethod) *domain.Transaction {
	t.Helper()
	txn := &domain.Transaction{
		ID:     id,
		Title:  title,
		Amount: decimal.NewFromInt(amount),
		Date:   date,
		Method: method,
		Action: domain.ActionEdit,
		Active: true,
	}
	var err error
	f.session.do(func() {
		err = f.store.UpsertIntoBucket(txn)
		txn.Snapshot()
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return txn
}

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// countLocations reports how many day buckets across all slots hold id.
func (f *fixture) countLocations(id string) int {
	n := 0
	f.session.do(func() {
		for slot := 0; slot < domain.SlotCount; slot++ {
			m := f.store.MonthSlot(slot)
			for _, day := range m.Days {
				if day.Placeholder {
					continue
				}
				if day.Find(id) != nil {
					n++
				}
			}
		}
	})
	return n
}

func (f *fixture) pendingIDs(t *testing.T) []string {
	t.Helper()
	recs, err := f.queue.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	return ids
}

// permID returns a deterministic permanent id for test submit handlers.
func permID(n int) string { return fmt.Sprintf("txn-%04d", n) }
