package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestCache(maxSize int, ttl time.Duration) (*LRUCache[int], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](maxSize, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	clock.t = clock.t.Add(30 * time.Second)
	if !c.Touch("a") {
		t.Fatal("Touch(a) should succeed")
	}

	clock.t = clock.t.Add(45 * time.Second)
	if _, ok := c.Get("b"); ok {
		t.Error("b should have expired")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be live after Touch")
	}

	clock.t = clock.t.Add(2 * time.Minute)
	if c.Touch("a") {
		t.Error("Touch on expired entry should fail")
	}
}

func TestLRUCache_CleanExpired(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	clock.t = clock.t.Add(2 * time.Minute)
	c.Set("c", 3)

	m := NewManager()
	m.Register(c)
	if removed := m.CleanNow(); removed != 2 {
		t.Errorf("CleanNow() = %d, want 2", removed)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
	m.Stop()
	m.Stop()
}

func TestManager_StartStop(t *testing.T) {
	m := NewManager()
	m.Register(NewLRUCache[string](1, time.Second))
	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}
