package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-sso-server/sessions"
	"golang.org/x/sync/singleflight"
)

const (
	defaultProfileCacheSize  = 1000
	defaultProfileCacheTTL   = 15 * time.Minute
	defaultProfileSampleSize = 50
)

// ProfileCache holds behaviour profiles for a bounded number of users. Entries
// expire after the TTL; when full, the oldest entry is evicted. Profiles are
// rebuilt from session history on a miss, one rebuild per user at a time.
type ProfileCache struct {
	history    sessions.HistoryRepo
	size       int
	ttl        time.Duration
	sampleSize int
	nowFunc    func() time.Time

	mu      sync.Mutex
	entries map[string]*Profile
	group   singleflight.Group
}

type ProfileCacheOption func(*ProfileCache)

// WithCacheSize bounds the number of cached users
func WithCacheSize(size int) ProfileCacheOption {
	return func(c *ProfileCache) {
		if size > 0 {
			c.size = size
		}
	}
}

func WithCacheTTL(ttl time.Duration) ProfileCacheOption {
	return func(c *ProfileCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSampleSize sets how many recent sessions a profile is built from
func WithSampleSize(n int) ProfileCacheOption {
	return func(c *ProfileCache) {
		if n > 0 {
			c.sampleSize = n
		}
	}
}

func WithCacheClock(nowFunc func() time.Time) ProfileCacheOption {
	return func(c *ProfileCache) {
		c.nowFunc = nowFunc
	}
}

func NewProfileCache(history sessions.HistoryRepo, options ...ProfileCacheOption) (*ProfileCache, error) {
	if history == nil {
		return nil, errors.New("[NewProfileCache] history repo is required")
	}
	c := &ProfileCache{
		history:    history,
		size:       defaultProfileCacheSize,
		ttl:        defaultProfileCacheTTL,
		sampleSize: defaultProfileSampleSize,
		nowFunc:    time.Now,
		entries:    make(map[string]*Profile),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Get returns the cached profile for userID, rebuilding it when missing or stale
func (c *ProfileCache) Get(ctx context.Context, userID string) (*Profile, error) {
	if p, ok := c.cached(userID); ok {
		return p, nil
	}

	v, err, _ := c.group.Do(userID, func() (any, error) {
		if p, ok := c.cached(userID); ok {
			return p, nil
		}
		entries, err := c.history.Recent(ctx, userID, c.sampleSize)
		if err != nil {
			return nil, fmt.Errorf("[ProfileCache.Get] load history for %s: %w", userID, err)
		}
		p := BuildProfile(userID, entries, c.nowFunc())
		c.store(p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Profile), nil
}

// Invalidate drops a user's profile so the next Get rebuilds it
func (c *ProfileCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *ProfileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ProfileCache) cached(userID string) (*Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	if c.nowFunc().Sub(p.BuiltAt) >= c.ttl {
		delete(c.entries, userID)
		return nil, false
	}
	return p, true
}

func (c *ProfileCache) store(p *Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[p.UserID]; !exists && len(c.entries) >= c.size {
		c.evictOldest()
	}
	c.entries[p.UserID] = p
}

// evictOldest must be called with mu held
func (c *ProfileCache) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, p := range c.entries {
		if oldestID == "" || p.BuiltAt.Before(oldest) {
			oldestID, oldest = id, p.BuiltAt
		}
	}
	delete(c.entries, oldestID)
}
