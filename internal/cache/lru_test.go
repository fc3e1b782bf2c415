package cache

import (
	"testing"
	"time"

	"ledger/internal/log"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLRU(size int, ttl time.Duration) (*LRU[string, int], *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewLRU[string, int](size, ttl)
	l.now = c.now
	return l, c
}

func TestLRU_GetSet(t *testing.T) {
	l, _ := newTestLRU(2, time.Minute)
	l.Set("a", 1)
	l.Set("b", 2)

	if v, ok := l.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}
	l.Set("c", 3) // evicts b, a was just used

	if _, ok := l.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if l.Size() != 2 {
		t.Errorf("Size() = %d, want 2", l.Size())
	}

	l.Set("a", 10)
	if v, _ := l.Get("a"); v != 10 {
		t.Errorf("Get(a) after overwrite = %d", v)
	}
	l.Delete("a")
	if _, ok := l.Get("a"); ok {
		t.Error("a should be deleted")
	}
}

func TestLRU_Expiry(t *testing.T) {
	l, c := newTestLRU(10, time.Minute)
	l.Set("a", 1)
	l.Set("b", 2)

	c.t = c.t.Add(30 * time.Second)
	l.Set("c", 3)
	c.t = c.t.Add(45 * time.Second)

	if _, ok := l.Get("a"); ok {
		t.Error("a should have expired")
	}
	if n := l.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1 (b)", n)
	}
	if v, ok := l.Get("c"); !ok || v != 3 {
		t.Errorf("Get(c) = %d, %v", v, ok)
	}
}

func TestManager(t *testing.T) {
	l, c := newTestLRU(10, time.Second)
	l.Set("a", 1)
	c.t = c.t.Add(time.Minute)

	m := NewManager(log.Discard())
	m.Register(l)
	if n := m.CleanAll(); n != 1 {
		t.Errorf("CleanAll() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
