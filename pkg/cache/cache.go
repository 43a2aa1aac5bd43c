// Package cache is a read-through cache for engine replies to read-only
// requests. Concurrent misses for the same key share one engine call, and
// writes invalidate the entries of the indices they touch.
//
// A read is tagged by index name only when that name is a concrete index
// this cache has seen written. Any other name, such as an alias or a
// wildcard, is tagged as depending on every index, so any write drops it. Aliases created by other processes are unknown
// here: once written through, such a name is treated as concrete.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
)

const keyPrefix = "searchclient:"

// Store is the key/value backend. Get reports found=false for a missing
// key rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Entry is a cached engine response.
type Entry struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// FetchFunc performs the engine call on a miss. store reports whether the
// response may be cached; failures are never cached.
type FetchFunc func() (entry Entry, store bool, err error)

// Cache fronts a Store with singleflight deduplication.
type Cache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64

	mu       sync.RWMutex
	concrete map[string]bool
	aliases  map[string]bool
}

// New creates a Cache. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   store,
		ttl:     ttl,
		metrics:  m,
		logger:   slog.Default().With("component", "reply-cache"),
		concrete: map[string]bool{},
		aliases:  map[string]bool{},
	}
}

// Key derives the cache key of a request. The indices named by the first
// path segment are kept readable in the key so writes can find them.
func (c *Cache) Key(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return fmt.Sprintf("%s%s:%x", keyPrefix, c.tag(path), h.Sum(nil)[:16])
}

// Fetch returns the cached entry for key, or calls fetch once for all
// concurrent callers of the same key. hit reports whether the entry came
// from the store.
func (c *Cache) Fetch(ctx context.Context, key string, fetch FetchFunc) (Entry, bool, error) {
	if e, ok := c.get(ctx, key); ok {
		return e, true, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.get(ctx, key); ok {
			return e, nil
		}
		e, store, err := fetch()
		if err != nil {
			return nil, err
		}
		if store {
			c.set(ctx, key, e)
		}
		return e, nil
	})
	if err != nil {
		return Entry{}, false, err
	}
	return v.(Entry), false, nil
}

// Invalidate drops the entries that may depend on the indices written by a
// request to path. Paths without a concrete index, such as /_bulk, and
// alias changes drop everything.
func (c *Cache) Invalidate(ctx context.Context, path string) error {
	indices := targets(path)
	aliases := aliasNames(path)
	c.learn(indices, aliases)

	patterns := make([]string, 0, len(indices))
	if len(indices) == 0 || len(aliases) > 0 || slices.ContainsFunc(indices, hasWildcard) {
		patterns = append(patterns, keyPrefix+"*")
	} else {
		for _, idx := range indices {
			patterns = append(patterns, keyPrefix+"*|"+globEscape(idx)+"|*")
		}
		// Reads across all indices depend on every write.
		patterns = append(patterns, keyPrefix+"|_all|*")
	}
	var total int64
	for _, p := range patterns {
		n, err := c.store.FlushByPattern(ctx, p)
		if err != nil {
			return fmt.Errorf("invalidating cache: %w", err)
		}
		total += n
	}
	c.logger.Debug("cache invalidate", "path", path, "keys_deleted", total)
	return nil
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) get(ctx context.Context, key string) (Entry, bool) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if err != nil || !found {
		c.miss()
		return Entry{}, false
	}
	var e Entry
	if err := serializer.Decode(data, &e); err != nil {
		c.logger.Error("cache entry undecodable", "key", key, "error", err)
		c.miss()
		return Entry{}, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return e, true
}

func (c *Cache) set(ctx context.Context, key string, e Entry) {
	data, err := serializer.Encode(e)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// targets returns the unescaped index names of the first path segment, or
// nil when the path starts with an API endpoint.
func targets(path string) []string {
	path, _, _ = strings.Cut(path, "?")
	first, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "" || strings.HasPrefix(first, "_") {
		return nil
	}
	var out []string
	for _, part := range strings.Split(first, ",") {
		if name, err := url.PathUnescape(part); err == nil && name != "" {
			out = append(out, name)
		}
	}
	return out
}

// aliasNames returns the alias names an alias endpoint path changes, or
// a single "*" for /_aliases, which can change any of them.
func aliasNames(path string) []string {
	path, _, _ = strings.Cut(path, "?")
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segs {
		if seg != "_alias" && seg != "_aliases" {
			continue
		}
		if i+1 >= len(segs) {
			return []string{"*"}
		}
		var out []string
		for _, part := range strings.Split(segs[i+1], ",") {
			if name, err := url.PathUnescape(part); err == nil && name != "" {
				out = append(out, name)
			}
		}
		return out
	}
	return nil
}

// learn records written indices as concrete, unless they are known
// aliases, and forgets names that alias endpoints touched.
func (c *Cache) learn(indices, aliases []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range aliases {
		if a == "*" {
			clear(c.concrete)
			continue
		}
		c.aliases[a] = true
		delete(c.concrete, a)
	}
	if len(aliases) > 0 {
		return
	}
	for _, idx := range indices {
		if !hasWildcard(idx) && !c.aliases[idx] {
			c.concrete[idx] = true
		}
	}
}

func (c *Cache) tag(path string) string {
	idx := targets(path)
	if len(idx) == 0 {
		return "|_all|"
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, name := range idx {
		if !c.concrete[name] {
			return "|_all|"
		}
	}
	slices.Sort(idx)
	return "|" + strings.Join(idx, "|") + "|"
}

func hasWildcard(name string) bool {
	return strings.ContainsAny(name, "*?") || name == "_all"
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
