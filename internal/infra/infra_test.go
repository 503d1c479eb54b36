package infra

import (
	"errors"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache[int](time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}
	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get = %d, %v", v, ok)
	}
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("Set did not replace the value, got %d", v)
	}
}

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	c := NewCache[string](30 * time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.SetWithTTL("long", "v", time.Hour)
	now = now.Add(31 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("custom TTL entry expired early")
	}
	c.Cleanup()
	if c.Len() != 1 {
		t.Errorf("Len after Cleanup = %d, want 1", c.Len())
	}
	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len after Flush = %d", c.Len())
	}
}

func TestCacheGetOrLoad(t *testing.T) {
	c := NewCache[int](time.Minute)
	loads := 0
	load := func() (int, error) {
		loads++
		return 42, nil
	}
	for i := 0; i < 3; i++ {
		if v, err := c.GetOrLoad("x", load); err != nil || v != 42 {
			t.Fatalf("GetOrLoad = %d, %v", v, err)
		}
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1", loads)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad("y", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := c.Get("y"); ok {
		t.Error("error result was cached")
	}
}
