package cache

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
)

// TestInMemoryCache_SetGet verifies the basic store-and-retrieve cycle.
func TestInMemoryCache_SetGet(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "widgets:7:xml", []byte("<widget/>"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "widgets:7:xml")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || !bytes.Equal(got, []byte("<widget/>")) {
		t.Errorf("Get() = (%q, %v), want hit with stored value", got, ok)
	}
}

// TestInMemoryCache_Miss verifies the miss result for unknown keys.
func TestInMemoryCache_Miss(t *testing.T) {
	c := NewInMemoryCache()

	got, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok || got != nil {
		t.Errorf("Get() = (%q, %v), want miss", got, ok)
	}
}

// TestInMemoryCache_Expiration verifies that expired entries read as misses.
func TestInMemoryCache_Expiration(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() after TTL should miss")
	}
}

// TestInMemoryCache_Delete verifies invalidation, including of missing keys.
func TestInMemoryCache_Delete(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("Get() after Delete should miss")
	}

	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete() of a missing key error = %v, want nil", err)
	}
}

// TestInMemoryCache_Concurrent exercises the cache from several goroutines.
func TestInMemoryCache_Concurrent(t *testing.T) {
	c := NewInMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Set(ctx, "shared", []byte("v"), time.Minute)
				_, _, _ = c.Get(ctx, "shared")
				_ = c.Delete(ctx, "shared")
			}
		}()
	}
	wg.Wait()
}
