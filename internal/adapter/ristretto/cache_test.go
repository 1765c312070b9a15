package ristretto

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/taskbridge/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(1 << 20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "poll:t1", []byte(`{"status":"done"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, found, err := c.Get(ctx, "poll:t1")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected hit after Set")
	}
	if string(val) != `{"status":"done"}` {
		t.Fatalf("unexpected value %s", val)
	}
}

func TestCacheMissAndDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if _, found, _ := c.Get(ctx, "absent"); found {
		t.Fatal("expected miss")
	}

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "k"); found {
		t.Fatal("expected miss after Delete")
	}
	if err := c.Delete(ctx, "never-existed"); err != nil {
		t.Fatal("Delete of nonexistent key should not error")
	}
}

func TestCacheHitRatio(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if r := c.HitRatio(); r != 0 {
		t.Fatalf("fresh cache ratio = %v", r)
	}
	_ = c.Set(ctx, "poll:t1", []byte(`{}`), time.Minute)
	for range 3 {
		if _, found, _ := c.Get(ctx, "poll:t1"); !found {
			t.Fatal("expected hit")
		}
	}
	_, _, _ = c.Get(ctx, "poll:absent")

	if r := c.HitRatio(); r != 0.75 {
		t.Fatalf("ratio = %v, want 0.75", r)
	}
}
