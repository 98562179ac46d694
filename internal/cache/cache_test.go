package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLRUCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clock.Now)

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}

	clock.Advance(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("entry should expire exactly at ttl")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry not removed, size %d", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](2, time.Hour)
	c.Set("a", "A")
	c.Set("b", "B")
	c.Get("a")
	c.Set("c", "C")

	if _, ok := c.Get("b"); ok {
		t.Fatal("least recently used entry should be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("recently used entry evicted")
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUCacheDeleteAndOverwrite(t *testing.T) {
	c := NewLRUCache[int](0, time.Hour)
	c.Set("a", 1)
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("overwrite lost, got %d", v)
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted entry still present")
	}
}

func TestManagerCleanAll(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	short := NewLRUCache[int](10, time.Second).WithClock(clock.Now)
	long := NewLRUCache[int](10, time.Hour).WithClock(clock.Now)
	short.Set("x", 1)
	short.Set("y", 2)
	long.Set("z", 3)

	m := NewManager(nil)
	m.Register("short", short)
	m.Register("long", long)

	clock.Advance(2 * time.Second)
	if n := m.CleanAll(); n != 2 {
		t.Fatalf("CleanAll removed %d, want 2", n)
	}
	if long.Size() != 1 {
		t.Fatal("unexpired entry removed")
	}
}

func TestManagerRunStopsOnCancel(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
