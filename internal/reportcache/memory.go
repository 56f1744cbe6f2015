package reportcache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-memory cache whose entries expire after a TTL.
type Memory struct {
	cache *gocache.Cache
}

// NewMemory creates a memory cache. A non-positive ttl disables expiry.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		return &Memory{cache: gocache.New(gocache.NoExpiration, 0)}
	}
	return &Memory{cache: gocache.New(ttl, 2*ttl)}
}

func (m *Memory) Get(k Key) (*Entry, bool) {
	if v, ok := m.cache.Get(k.String()); ok {
		e := v.(Entry)
		return &e, true
	}
	return nil, false
}

func (m *Memory) Put(k Key, e Entry) error {
	m.cache.SetDefault(k.String(), e)
	return nil
}

func (m *Memory) Delete(k Key) error {
	m.cache.Delete(k.String())
	return nil
}

// Flush drops every entry.
func (m *Memory) Flush() {
	m.cache.Flush()
}
