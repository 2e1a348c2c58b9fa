package cache

import (
	"errors"
	"math"
	"strings"
	"time"
)

// Config controls cache capacity and the hooks the engine reports through.
//
// Defaults:
//   - MaxEntries <= 0 means "unbounded" (no LRU eviction)
//   - Now == nil means time.Now
//
// The hooks run synchronously inside the operation that triggered them and
// must not call back into the same Cache.
type Config struct {
	MaxEntries int
	Now        func() time.Time

	// OnEvict is called once per entry removed because of capacity pressure.
	OnEvict func(key string)
	// OnExpire is called once per entry removed by lazy expiry.
	OnExpire func(key string)
}

// Stats is a point-in-time view of the engine's bookkeeping.
type Stats struct {
	Used     int
	Capacity int
	Evicted  uint64
}

// ErrUnknownParameter is returned by ConfigSet for parameter names the
// engine does not understand.
var ErrUnknownParameter = errors.New("cache: unknown configuration parameter")

// Time-to-live results reported by TTL.
const (
	TTLMissing  int64 = -2
	TTLNoExpiry int64 = -1
)

// maxExpireSeconds keeps now+seconds inside the range of time.Duration.
const maxExpireSeconds = math.MaxInt64 / int64(time.Second)

// Cache is a single-threaded in-memory key–value cache with TTL and LRU eviction.
//
// A map gives O(1) key lookup, an arena-backed doubly linked list keeps
// recency order, and a second map holds absolute expiry instants for keys
// that have one. Expiration is lazy: an expired key is only removed when an
// operation touches it, so Len may count keys that are already logically gone.
//
// Cache does no locking. Hosts that call it from several goroutines must
// serialize access, for example through Locked.
type Cache struct {
	maxEntries int
	evicted    uint64

	items   map[string]handle    // entry store
	expires map[string]time.Time // expiry table
	lru     *recencyList         // front = MRU, back = LRU

	now      func() time.Time
	onEvict  func(string)
	onExpire func(string)
}

// New constructs an empty cache. New never returns nil.
func New(cfg Config) *Cache {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		maxEntries: max(cfg.MaxEntries, 0),
		items:      make(map[string]handle),
		expires:    make(map[string]time.Time),
		lru:        newRecencyList(),
		now:        now,
		onEvict:    cfg.OnEvict,
		onExpire:   cfg.OnExpire,
	}
}

// Set writes or overwrites a key. Overwriting keeps any TTL already set and
// counts as use.
//
// Complexity:
//   - O(1) to locate/insert
//   - O(1) eviction per removed entry
func (c *Cache) Set(key, value string) {
	h, ok := c.lookup(key, c.now())
	if ok {
		c.lru.at(h).value = value
		c.lru.moveToFront(h)
		return
	}

	h = c.lru.alloc(key, value)
	c.lru.insertFront(h)
	c.items[key] = h
	c.evictIfNeeded()
}

// Get reads a key and marks it most recently used.
func (c *Cache) Get(key string) (string, bool) {
	h, ok := c.lookup(key, c.now())
	if !ok {
		return "", false
	}
	c.lru.moveToFront(h)
	return c.lru.at(h).value, true
}

// Delete removes a key and reports how many keys were removed (0 or 1).
// A key found expired counts as already gone.
func (c *Cache) Delete(key string) int {
	if _, ok := c.lookup(key, c.now()); !ok {
		return 0
	}
	c.deleteKey(key)
	return 1
}

// Exists reports 1 if key is live and 0 otherwise. Recency is untouched.
func (c *Cache) Exists(key string) int {
	if _, ok := c.lookup(key, c.now()); !ok {
		return 0
	}
	return 1
}

// Len returns the number of stored entries.
//
// Note: Len includes entries that have expired but haven't been touched since.
func (c *Cache) Len() int {
	return len(c.items)
}

// Expire sets key to expire seconds from now and reports 1, or 0 if the key
// is not live. Zero or negative seconds are accepted; the key then goes away
// the next time it is touched.
func (c *Cache) Expire(key string, seconds int64) int {
	now := c.now()
	if _, ok := c.lookup(key, now); !ok {
		return 0
	}
	seconds = min(max(seconds, -maxExpireSeconds), maxExpireSeconds)
	c.expires[key] = now.Add(time.Duration(seconds) * time.Second)
	return 1
}

// TTL returns the remaining whole seconds before key expires, TTLNoExpiry
// for a live key without expiry, or TTLMissing for an absent key.
func (c *Cache) TTL(key string) int64 {
	now := c.now()
	if _, ok := c.lookup(key, now); !ok {
		return TTLMissing
	}
	at, ok := c.expires[key]
	if !ok {
		return TTLNoExpiry
	}
	return max(int64(at.Sub(now)/time.Second), 0)
}

// SetCapacity changes the entry bound (<= 0 means unbounded) and evicts
// immediately if the live set no longer fits.
func (c *Cache) SetCapacity(n int) {
	c.maxEntries = max(n, 0)
	c.evictIfNeeded()
}

// ConfigSet applies a named configuration parameter. Only "maxmemory" is
// understood; other names return ErrUnknownParameter and change nothing.
func (c *Cache) ConfigSet(param string, value int64) error {
	if !strings.EqualFold(param, "maxmemory") {
		return ErrUnknownParameter
	}
	c.SetCapacity(int(min(value, math.MaxInt)))
	return nil
}

// Stats reports usage, the configured bound and the eviction counter.
func (c *Cache) Stats() Stats {
	return Stats{
		Used:     len(c.items),
		Capacity: c.maxEntries,
		Evicted:  c.evicted,
	}
}

// Keys returns keys in MRU -> LRU order, including ones that have expired
// but were not touched since.
func (c *Cache) Keys() []string {
	out := make([]string, 0, c.lru.len())
	for h := c.lru.front(); h != tailHandle; h = c.lru.next(h) {
		out = append(out, c.lru.at(h).key)
	}
	return out
}

// lookup resolves key against the entry store, lazily deleting it first if
// its expiry has passed at now.
func (c *Cache) lookup(key string, now time.Time) (handle, bool) {
	h, ok := c.items[key]
	if !ok {
		return nilHandle, false
	}
	if at, ok := c.expires[key]; ok && !at.After(now) {
		c.deleteKey(key)
		if c.onExpire != nil {
			c.onExpire(key)
		}
		return nilHandle, false
	}
	return h, true
}

// deleteKey removes key from all three structures. The key must be live.
func (c *Cache) deleteKey(key string) {
	h := c.items[key]
	delete(c.items, key)
	delete(c.expires, key)
	c.lru.remove(h)
	c.lru.release(h)
}
