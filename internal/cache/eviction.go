package cache

// evictIfNeeded removes least recently used entries until the store fits
// the configured bound. Expired entries get no special treatment here: they
// occupy their recency slot like any other until touched.
func (c *Cache) evictIfNeeded() {
	if c.maxEntries <= 0 {
		return
	}
	for len(c.items) > c.maxEntries {
		h, ok := c.lru.removeBack()
		if !ok {
			return
		}
		key := c.lru.at(h).key
		delete(c.items, key)
		delete(c.expires, key)
		c.lru.release(h)
		c.evicted++
		if c.onEvict != nil {
			c.onEvict(key)
		}
	}
}
