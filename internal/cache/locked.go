package cache

import "sync"

// Locked serializes access to a Cache with a mutex held for the duration
// of each call.
//
// Get mutates recency order, so there is no read-only fast path and a plain
// Mutex is used rather than an RWMutex.
type Locked struct {
	mu sync.Mutex
	c  *Cache
}

// NewLocked wraps c. c must not be used directly afterwards.
func NewLocked(c *Cache) *Locked {
	return &Locked{c: c}
}

func (l *Locked) Set(key, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.Set(key, value)
}

func (l *Locked) Get(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Get(key)
}

func (l *Locked) Delete(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Delete(key)
}

func (l *Locked) Exists(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Exists(key)
}

func (l *Locked) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Len()
}

func (l *Locked) Expire(key string, seconds int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Expire(key, seconds)
}

func (l *Locked) TTL(key string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.TTL(key)
}

func (l *Locked) SetCapacity(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.c.SetCapacity(n)
}

func (l *Locked) ConfigSet(param string, value int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.ConfigSet(param, value)
}

func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Stats()
}

// Keys returns keys in MRU -> LRU order.
func (l *Locked) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Keys()
}
