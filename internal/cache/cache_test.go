package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New[string](time.Minute, time.Minute)
	defer c.Stop()

	c.Set("catalog:/repo/.incidentfox.yaml", "parsed")

	value, ok := c.Get("catalog:/repo/.incidentfox.yaml")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if value != "parsed" {
		t.Errorf("expected parsed, got %v", value)
	}
}

func TestCache_GetMissing(t *testing.T) {
	c := New[*int](time.Minute, time.Minute)
	defer c.Stop()

	value, ok := c.Get("nonexistent")
	if ok {
		t.Error("expected key to not exist")
	}
	if value != nil {
		t.Errorf("expected zero value, got %v", value)
	}
}

func TestCache_SetWithTTL_Expires(t *testing.T) {
	c := New[string](time.Hour, time.Hour)
	defer c.Stop()

	c.SetWithTTL("short", "v", 20*time.Millisecond)
	if _, ok := c.Get("short"); !ok {
		t.Fatal("expected key to exist before expiry")
	}

	time.Sleep(50 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expected key to be expired")
	}
	// not swept yet
	if c.Len() != 1 {
		t.Errorf("expected expired entry to remain until cleanup, got len %d", c.Len())
	}
}

func TestCache_CleanupSweepsExpired(t *testing.T) {
	c := New[int](10*time.Millisecond, 20*time.Millisecond)
	defer c.Stop()

	c.Set("a", 1)
	c.SetWithTTL("b", 2, time.Hour)

	deadline := time.Now().Add(time.Second)
	for c.Len() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if c.Len() != 1 {
		t.Fatalf("expected cleanup to leave 1 entry, got %d", c.Len())
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected long-lived entry to survive cleanup")
	}
}

func TestCache_DeleteByPrefix(t *testing.T) {
	c := New[int](time.Minute, time.Minute)
	defer c.Stop()

	c.Set("catalog:a", 1)
	c.Set("catalog:b", 2)
	c.Set("other", 3)

	c.DeleteByPrefix("catalog:")
	if c.Len() != 1 {
		t.Errorf("expected only 'other' to remain, got %d", c.Len())
	}
	if _, ok := c.Get("other"); !ok {
		t.Error("expected key outside the prefix to survive")
	}
}

func TestCache_StopTwice(t *testing.T) {
	c := New[int](time.Minute, time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute, time.Millisecond)
	defer c.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%5)
			c.Set(key, n)
			c.Get(key)
			if n%7 == 0 {
				c.DeleteByPrefix("k")
			}
		}(i)
	}
	wg.Wait()
}

func TestCache_ZeroTTLNeverHits(t *testing.T) {
	c := New[string](0, 0)
	defer c.Stop()

	c.Set("k", "v")
	time.Sleep(time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected zero-TTL entry to be expired")
	}
}
