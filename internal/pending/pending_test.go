package pending

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// queueUnderTest runs the same contract checks against both implementations.
func queueUnderTest(t *testing.T, name string, open func(t *testing.T) Queue) {
	t.Run(name+"/PutGetDelete", func(t *testing.T) {
		q := open(t)
		defer q.Close()
		ctx := context.Background()

		rec := &Record{ID: "txn-1", Kind: KindTransaction, Payload: []byte(`{"title":"a"}`), StagedAt: time.Now().UTC()}
		if err := q.Put(ctx, rec); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := q.Get(ctx, "txn-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got == nil || string(got.Payload) != `{"title":"a"}` {
			t.Fatalf("Get = %+v, want staged payload", got)
		}

		if err := q.Delete(ctx, "txn-1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		got, err = q.Get(ctx, "txn-1")
		if err != nil {
			t.Fatalf("Get after delete: %v", err)
		}
		if got != nil {
			t.Errorf("record survived delete: %+v", got)
		}

		// Deleting an absent id is not an error.
		if err := q.Delete(ctx, "missing"); err != nil {
			t.Errorf("Delete(missing): %v", err)
		}
	})

	t.Run(name+"/PutOverwrites", func(t *testing.T) {
		q := open(t)
		defer q.Close()
		ctx := context.Background()

		staged := time.Now().UTC()
		for i, payload := range []string{`{"v":1}`, `{"v":2}`, `{"v":3}`} {
			rec := &Record{ID: "txn-1", Kind: KindTransaction, Payload: []byte(payload), StagedAt: staged.Add(time.Duration(i) * time.Second)}
			if err := q.Put(ctx, rec); err != nil {
				t.Fatalf("Put #%d: %v", i, err)
			}
		}

		all, err := q.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("records for one id = %d, want exactly 1", len(all))
		}
		if string(all[0].Payload) != `{"v":3}` {
			t.Errorf("payload = %s, want the most recent staging", all[0].Payload)
		}
	})

	t.Run(name+"/ListAllOrdered", func(t *testing.T) {
		q := open(t)
		defer q.Close()
		ctx := context.Background()

		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		for i, id := range []string{"c", "a", "b"} {
			rec := &Record{ID: id, Kind: KindBudget, Payload: []byte(`{}`), StagedAt: base.Add(time.Duration(i) * time.Minute)}
			if err := q.Put(ctx, rec); err != nil {
				t.Fatal(err)
			}
		}

		all, err := q.ListAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"c", "a", "b"} // staging order, not id order
		if len(all) != len(want) {
			t.Fatalf("ListAll = %d records, want %d", len(all), len(want))
		}
		for i, rec := range all {
			if rec.ID != want[i] {
				t.Errorf("ListAll[%d] = %s, want %s", i, rec.ID, want[i])
			}
		}
	})
}

func TestMemoryQueue(t *testing.T) {
	queueUnderTest(t, "memory", func(t *testing.T) Queue {
		return NewMemoryQueue()
	})
}

func TestSQLiteQueue(t *testing.T) {
	queueUnderTest(t, "sqlite", func(t *testing.T) Queue {
		q, err := OpenSQLite(filepath.Join(t.TempDir(), "pending.db"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		return q
	})
}

func TestSQLiteQueue_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.db")
	ctx := context.Background()

	q, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := &Record{ID: "txn-1", Kind: KindTransaction, Payload: []byte(`{"title":"offline"}`), StagedAt: time.Now().UTC()}
	if err := q.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}

	// Simulated process restart.
	q2, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer q2.Close()

	all, err := q2.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != "txn-1" {
		t.Fatalf("after reopen ListAll = %+v, want the staged record", all)
	}
}
