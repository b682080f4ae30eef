package lru

import (
	"slices"
	"testing"
)

func keys(c *Cache[int, string]) []int {
	var out []int
	c.Range(func(k int, _ string) bool {
		out = append(out, k)
		return true
	})
	return out
}

func TestTrimEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []int
	c := New[int, string](3, func(k int, _ string) { evicted = append(evicted, k) })

	c.Put(1, "a")
	c.Put(2, "b")
	c.Put(3, "c")
	c.Put(4, "d")

	if n := c.TrimToMaxSize(); n != 1 {
		t.Fatalf("TrimToMaxSize evicted %d, want 1", n)
	}
	if !slices.Equal(evicted, []int{1}) {
		t.Fatalf("evicted = %v, want [1]", evicted)
	}
	if c.Contains(1) {
		t.Fatal("entry 1 should be gone")
	}
}

func TestTouchProtectsFromEviction(t *testing.T) {
	var evicted []int
	c := New[int, string](3, func(k int, _ string) { evicted = append(evicted, k) })

	c.Put(1, "a")
	c.Put(2, "b")
	c.Put(3, "c")
	if !c.Touch(1) {
		t.Fatal("Touch(1) = false")
	}
	c.Put(4, "d")
	c.TrimToMaxSize()

	if !slices.Equal(evicted, []int{2}) {
		t.Fatalf("evicted = %v, want [2]", evicted)
	}
	if got := keys(c); !slices.Equal(got, []int{4, 1, 3}) {
		t.Fatalf("order = %v", got)
	}
}

func TestGetPromotes(t *testing.T) {
	c := New[int, string](2, nil)
	c.Put(1, "a")
	c.Put(2, "b")
	if v, ok := c.Get(1); !ok || v != "a" {
		t.Fatalf("Get(1) = %q, %v", v, ok)
	}
	c.Put(3, "c")
	c.TrimToMaxSize()
	if !c.Contains(1) || c.Contains(2) {
		t.Fatalf("keys = %v, want 3 and 1", keys(c))
	}
}

func TestPutExistingReplacesValue(t *testing.T) {
	c := New[int, string](2, nil)
	c.Put(1, "a")
	c.Put(1, "z")
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
	if v, _ := c.Get(1); v != "z" {
		t.Fatalf("Get(1) = %q", v)
	}
}

func TestMinSizeFloor(t *testing.T) {
	c := New[int, string](2, nil)
	c.SetMinSize(4)
	for i := 0; i < 5; i++ {
		c.Put(i, "x")
	}
	if n := c.TrimToMaxSize(); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if c.Len() != 4 {
		t.Fatalf("Len = %d, want 4", c.Len())
	}
}

func TestUnloadAllInvokesHook(t *testing.T) {
	var evicted []int
	c := New[int, string](10, func(k int, _ string) { evicted = append(evicted, k) })
	c.Put(1, "a")
	c.Put(2, "b")
	c.Get(1)

	if n := c.UnloadAll(); n != 2 {
		t.Fatalf("UnloadAll = %d", n)
	}
	if !slices.Equal(evicted, []int{2, 1}) {
		t.Fatalf("evicted = %v, want [2 1]", evicted)
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d", c.Len())
	}
}

func TestRemoveSkipsHook(t *testing.T) {
	called := false
	c := New[int, string](1, func(int, string) { called = true })
	c.Put(1, "a")
	if v, ok := c.Remove(1); !ok || v != "a" {
		t.Fatalf("Remove = %q, %v", v, ok)
	}
	if called {
		t.Fatal("hook should not run on Remove")
	}
}
