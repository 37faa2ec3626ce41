package cache

import (
	"context"
	"path/filepath"
	"testing"
)

func cacheUnderTest(t *testing.T, name string, open func(t *testing.T) Cache) {
	t.Run(name, func(t *testing.T) {
		c := open(t)
		defer c.Close()
		ctx := context.Background()

		entries := []*Entry{
			{Kind: KindCategory, ID: "cat-2", Payload: []byte(`{"name":"Food"}`)},
			{Kind: KindCategory, ID: "cat-1", Payload: []byte(`{"name":"Housing"}`)},
			{Kind: KindPaymentMethod, ID: "pm-1", Payload: []byte(`{"name":"Checking"}`)},
		}
		for _, e := range entries {
			if err := c.Save(ctx, e); err != nil {
				t.Fatalf("Save(%s/%s): %v", e.Kind, e.ID, err)
			}
		}

		cats, err := c.GetMany(ctx, KindCategory)
		if err != nil {
			t.Fatalf("GetMany: %v", err)
		}
		if len(cats) != 2 {
			t.Fatalf("GetMany(category) = %d entries, want 2", len(cats))
		}
		if cats[0].ID != "cat-1" || cats[1].ID != "cat-2" {
			t.Errorf("GetMany not ordered by id: %s, %s", cats[0].ID, cats[1].ID)
		}

		one, err := c.GetOne(ctx, KindPaymentMethod, "pm-1")
		if err != nil {
			t.Fatalf("GetOne: %v", err)
		}
		if one == nil || string(one.Payload) != `{"name":"Checking"}` {
			t.Fatalf("GetOne = %+v", one)
		}

		// Overwrite.
		if err := c.Save(ctx, &Entry{Kind: KindPaymentMethod, ID: "pm-1", Payload: []byte(`{"name":"Joint"}`)}); err != nil {
			t.Fatal(err)
		}
		one, _ = c.GetOne(ctx, KindPaymentMethod, "pm-1")
		if string(one.Payload) != `{"name":"Joint"}` {
			t.Errorf("overwrite not applied: %s", one.Payload)
		}

		if err := c.Delete(ctx, KindCategory, "cat-2"); err != nil {
			t.Fatal(err)
		}
		if got, _ := c.GetOne(ctx, KindCategory, "cat-2"); got != nil {
			t.Error("entry survived delete")
		}
		if err := c.Delete(ctx, KindCategory, "missing"); err != nil {
			t.Errorf("Delete(missing): %v", err)
		}
	})
}

func TestMemoryCache(t *testing.T) {
	cacheUnderTest(t, "memory", func(t *testing.T) Cache {
		return NewMemoryCache()
	})
}

func TestSQLiteCache(t *testing.T) {
	cacheUnderTest(t, "sqlite", func(t *testing.T) Cache {
		c, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		return c
	})
}
