package main

import (
	"sync"
	"time"
)

// ListingCache provides thread-safe TTL caching for the conversation
// listing, which rereads every conversation file on a miss.
type ListingCache struct {
	mu          sync.RWMutex
	listing     []ConversationMetadata
	lastUpdated time.Time
	ttl         time.Duration
}

// NewListingCache creates a cache with the specified TTL.
func NewListingCache(ttl time.Duration) *ListingCache {
	return &ListingCache{
		ttl: ttl,
	}
}

// Get retrieves the cached listing if present and not expired.
func (c *ListingCache) Get() ([]ConversationMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.listing == nil {
		return nil, false
	}
	if time.Since(c.lastUpdated) > c.ttl {
		return nil, false
	}

	// Copy so callers cannot mutate the cached slice.
	listingCopy := make([]ConversationMetadata, len(c.listing))
	copy(listingCopy, c.listing)
	return listingCopy, true
}

// Set replaces the cached listing.
func (c *ListingCache) Set(listing []ConversationMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listing = make([]ConversationMetadata, len(listing))
	copy(c.listing, listing)
	c.lastUpdated = time.Now()
}

// Clear drops the cached listing. Called on every store write.
func (c *ListingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listing = nil
	c.lastUpdated = time.Time{}
}

// IsExpired reports whether the cache holds no fresh listing.
func (c *ListingCache) IsExpired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.listing == nil {
		return true
	}
	return time.Since(c.lastUpdated) > c.ttl
}

// LastUpdated returns when the cache was last filled.
func (c *ListingCache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastUpdated
}
