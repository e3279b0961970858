package service

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/faucetdb/warden/internal/config"
	"github.com/faucetdb/warden/internal/model"
)

// DefaultTokenCacheSize bounds the in-memory session store.
const DefaultTokenCacheSize = 10000

// CacheTokenStore keeps session tokens in a bounded in-process cache with a
// native TTL. Sessions do not survive a restart and are not shared between
// processes. When the cache is full the least recently used session is
// evicted.
type CacheTokenStore struct {
	mu  sync.Mutex // serialises check-and-add in SaveSessionToken
	lru *expirable.LRU[string, model.SessionToken]
}

// NewCacheTokenStore creates a CacheTokenStore holding up to size sessions
// for at most ttl each.
func NewCacheTokenStore(size int, ttl time.Duration) *CacheTokenStore {
	if size <= 0 {
		size = DefaultTokenCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &CacheTokenStore{lru: expirable.NewLRU[string, model.SessionToken](size, nil, ttl)}
}

func (c *CacheTokenStore) SaveSessionToken(_ context.Context, key string, tok *model.SessionToken) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru.Contains(key) {
		return config.ErrDuplicate
	}
	c.lru.Add(key, *tok)
	return nil
}

func (c *CacheTokenStore) GetSessionToken(_ context.Context, key string) (*model.SessionToken, error) {
	tok, ok := c.lru.Get(key)
	if !ok {
		return nil, config.ErrNotFound
	}
	return &tok, nil
}

// DeleteExpiredSessionTokens drops entries whose recorded expiry has passed
// at now. Entries past the cache TTL are already gone.
func (c *CacheTokenStore) DeleteExpiredSessionTokens(_ context.Context, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, key := range c.lru.Keys() {
		tok, ok := c.lru.Peek(key)
		if ok && tok.Expired(now) && c.lru.Remove(key) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of cached sessions.
func (c *CacheTokenStore) Len() int { return c.lru.Len() }
