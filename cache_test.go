package main

import (
	"testing"
	"time"
)

func TestListingCacheSetAndGet(t *testing.T) {
	cache := NewListingCache(1 * time.Minute)

	if _, ok := cache.Get(); ok {
		t.Error("empty cache should miss")
	}

	listing := []ConversationMetadata{
		{ID: "a", Title: "First"},
		{ID: "b", Title: "Second"},
	}
	cache.Set(listing)

	got, ok := cache.Get()
	if !ok {
		t.Fatal("fresh cache should hit")
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("cached listing = %+v", got)
	}
}

func TestListingCacheExpiry(t *testing.T) {
	cache := NewListingCache(10 * time.Millisecond)
	cache.Set([]ConversationMetadata{{ID: "a"}})

	if cache.IsExpired() {
		t.Error("cache expired immediately")
	}

	time.Sleep(25 * time.Millisecond)

	if !cache.IsExpired() {
		t.Error("cache should have expired")
	}
	if _, ok := cache.Get(); ok {
		t.Error("expired cache should miss")
	}
}

func TestListingCacheClear(t *testing.T) {
	cache := NewListingCache(1 * time.Minute)
	cache.Set([]ConversationMetadata{{ID: "a"}})
	cache.Clear()

	if _, ok := cache.Get(); ok {
		t.Error("cleared cache should miss")
	}
	if !cache.LastUpdated().IsZero() {
		t.Error("Clear should reset the update time")
	}
}

// TestListingCacheCopies verifies callers cannot mutate cached state through
// either Set's input or Get's output.
func TestListingCacheCopies(t *testing.T) {
	cache := NewListingCache(1 * time.Minute)

	original := []ConversationMetadata{{ID: "a", Title: "untouched"}}
	cache.Set(original)
	original[0].Title = "mutated after Set"

	got, ok := cache.Get()
	if !ok {
		t.Fatal("expected hit")
	}
	if got[0].Title != "untouched" {
		t.Error("Set did not copy its input")
	}

	got[0].Title = "mutated after Get"
	again, _ := cache.Get()
	if again[0].Title != "untouched" {
		t.Error("Get did not copy its output")
	}
}
