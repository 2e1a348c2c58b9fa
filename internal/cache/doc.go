// Package cache implements a single-process, in-memory key–value cache.
//
// Goals for this package:
//   - Make the core data structures explicit (map + arena-backed doubly linked list + expiry map)
//   - Provide O(1) Set/Get/Delete via map index + handle-linked recency list
//   - Bound the number of entries with deterministic LRU eviction
//   - Support per-key TTL with lazy (on-access) expiration only
//
// There is no background expiry. A key past its deadline stays in the store,
// and is counted by Len and Stats, until some operation touches it. Anything
// that swept expired keys periodically would change what Len reports between
// commands.
//
// Cache is not safe for concurrent use. Locked wraps it with a mutex for
// hosts that need to share one engine between goroutines.
package cache
