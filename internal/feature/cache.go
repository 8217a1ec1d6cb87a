package feature

import (
	"github.com/google/uuid"

	"topo/internal/document"
	"topo/internal/logging"
	"topo/internal/shape"
)

type cacheKey struct {
	doc     uuid.UUID
	tag     int64
	subname string
}

type cacheEntry struct {
	// owner is the object the subname walk resolved to, returned on a
	// hit so callers skip the walk entirely.
	owner *document.Object
	shape *shape.Shape
}

// CacheStats reports shape-cache activity.
type CacheStats struct {
	Entries       int `json:"entries"`
	Hits          int `json:"hits"`
	Misses        int `json:"misses"`
	Writes        int `json:"writes"`
	Invalidations int `json:"invalidations"`
}

// Cache is the process-wide shape reuse layer, keyed by object identity
// and optional subname. It is explicit state passed into the engine, never
// a function-local static, and it holds no owning reference semantics: an
// entry never keeps an object alive, and invalidation is driven purely by
// external change notification.
type Cache struct {
	logger     *logging.Logger
	maxEntries int
	entries    map[cacheKey]cacheEntry
	order      []cacheKey // insertion order, for eviction
	stats      CacheStats
}

// NewCache creates a cache bounded to maxEntries.
func NewCache(maxEntries int, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Discard()
	}
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &Cache{
		logger:     logger,
		maxEntries: maxEntries,
		entries:    make(map[cacheKey]cacheEntry),
	}
}

// Attach subscribes the cache to a document's change notifications.
func (c *Cache) Attach(d *document.Document) {
	d.OnChange(func(o *document.Object) {
		c.invalidateTag(d.ID(), o.Tag())
	})
}

// Get returns the cached shape and resolved owner for (object, subname),
// as queried, before any subname resolution. The returned shape shares
// its element map copy-on-write, so callers may resolve against it
// freely.
func (c *Cache) Get(o *document.Object, subname string) (*shape.Shape, *document.Object, bool) {
	if c == nil || o.Document() == nil {
		return nil, nil, false
	}
	key := cacheKey{doc: o.Document().ID(), tag: o.Tag(), subname: subname}
	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, nil, false
	}
	c.stats.Hits++
	return entry.shape.Share(), entry.owner, true
}

// Set stores a shape under the queried (object, subname) pair, recording
// the owner the subname resolved to. Writes are dropped while the owning
// document is restoring from the store, so transient states are never
// cached.
func (c *Cache) Set(o *document.Object, subname string, owner *document.Object, s *shape.Shape) {
	if c == nil {
		return
	}
	if d := o.Document(); d == nil || d.Restoring {
		return
	}
	c.SetForced(o, subname, owner, s)
}

// SetForced stores a shape even during a restore. Scaled shapes go
// through here: a non-rigid transform cannot be replayed from the link
// target, so the cached copy is the only record.
func (c *Cache) SetForced(o *document.Object, subname string, owner *document.Object, s *shape.Shape) {
	if c == nil || s.IsNull() || o.Document() == nil {
		return
	}
	key := cacheKey{doc: o.Document().ID(), tag: o.Tag(), subname: subname}
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{owner: owner, shape: s.Share()}
	c.stats.Writes++
}

// InvalidateObject drops every entry for one object, all subnames
// included.
func (c *Cache) InvalidateObject(o *document.Object) {
	if c == nil || o == nil {
		return
	}
	doc := o.Document()
	if doc == nil {
		return
	}
	c.invalidateTag(doc.ID(), o.Tag())
}

// invalidateTag drops entries queried through the object or resolved to
// it: a dotted subname keys an entry under the query root, so the owner
// recorded at write time must be matched as well.
func (c *Cache) invalidateTag(doc uuid.UUID, tag int64) {
	kept := c.order[:0]
	for _, key := range c.order {
		drop := key.doc == doc && key.tag == tag
		if !drop {
			if owner := c.entries[key].owner; owner != nil && owner.Document() != nil {
				drop = owner.Document().ID() == doc && owner.Tag() == tag
			}
		}
		if drop {
			delete(c.entries, key)
			c.stats.Invalidations++
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}

// InvalidateDocument drops every entry belonging to a document, as done
// when the document closes.
func (c *Cache) InvalidateDocument(doc uuid.UUID) {
	if c == nil {
		return
	}
	kept := c.order[:0]
	for _, key := range c.order {
		if key.doc == doc {
			delete(c.entries, key)
			c.stats.Invalidations++
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
}

// Clear drops everything.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.stats.Invalidations += len(c.entries)
	c.entries = make(map[cacheKey]cacheEntry)
	c.order = nil
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	s := c.stats
	s.Entries = len(c.entries)
	return s
}
