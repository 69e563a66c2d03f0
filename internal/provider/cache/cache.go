package cache

import (
	"context"
	"net/http"
	"sync"
	"time"

	"marketpulse/internal/httpx"
)

// entry stores a cached upstream body with expiry.
type entry struct {
	expiresAt time.Time
	body      []byte
}

// Getter caches upstream bodies per URL for a TTL. The Sina index list serves
// every Sina-backed instrument, so one pipeline run only pays for it once.
type Getter struct {
	G        httpx.Getter
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry // key: url
	now   func() time.Time
}

func (c *Getter) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Get returns a cached body when valid, otherwise fetches and stores it.
// Failures are never cached.
func (c *Getter) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if c.TTL <= 0 {
		return c.G.Get(ctx, rawURL, header)
	}

	now := c.clock()
	c.mu.RLock()
	if e, ok := c.items[rawURL]; ok && now.Before(e.expiresAt) {
		c.mu.RUnlock()
		return e.body, nil
	}
	c.mu.RUnlock()

	body, err := c.G.Get(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[rawURL] = entry{expiresAt: now.Add(c.TTL), body: body}
	// best-effort cap cache size
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		// remove expired first, then arbitrary
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != rawURL {
				delete(c.items, k)
			}
		}
	}
	return body, nil
}

// Len reports how many bodies are cached.
func (c *Getter) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
