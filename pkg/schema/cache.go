package schema

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// MetadataService supplies table metadata. Implementations live at the
// transport boundary (GraphQL client, embedded backend); the cache is the
// only consumer inside the engine.
type MetadataService interface {
	TableMeta(ctx context.Context, tableKey string) (*TableMeta, error)
}

// Cache is a table-key-scoped metadata cache.
//
// Field metadata and relation descriptors can arrive independently: the grid
// typically knows a table's columns from the row query before the schema
// query delivers relation descriptors. PutFields and PutRelations store the
// two halves separately and Lookup returns the merged view, so renderers that
// are pure functions of cache state pick up relations on the render pass
// after they arrive.
//
// Subscribers are notified with the table key after every store or
// invalidation. Lookups return deep copies.
type Cache struct {
	mu      sync.RWMutex
	svc     MetadataService
	tables  map[string]*TableMeta
	subs    map[int]func(tableKey string)
	nextSub int
}

// NewCache creates a metadata cache. svc may be nil when entries are seeded
// directly with PutFields/PutRelations.
func NewCache(svc MetadataService) *Cache {
	return &Cache{
		svc:    svc,
		tables: make(map[string]*TableMeta),
		subs:   make(map[int]func(string)),
	}
}

// Lookup returns the cached metadata for a table, or (nil, false) when the
// table has not been populated yet.
func (c *Cache) Lookup(tableKey string) (*TableMeta, bool) {
	c.mu.RLock()
	meta, ok := c.tables[tableKey]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return meta.Clone(), true
}

// Populate fetches metadata through the service and stores it.
func (c *Cache) Populate(ctx context.Context, tableKey string) (*TableMeta, error) {
	if c.svc == nil {
		return nil, errors.New("schema: cache has no metadata service")
	}
	meta, err := c.svc.TableMeta(ctx, tableKey)
	if err != nil {
		return nil, errors.WithMessagef(err, "schema: fetch metadata for table %q", tableKey)
	}
	c.put(meta.Clone())
	return meta, nil
}

// PutFields stores column metadata for a table. A nil Relations map means
// the relation descriptors have not arrived with this update, so any already
// cached for the table are preserved; a non-nil empty map is authoritative
// and replaces them (the table legitimately has no relations anymore).
func (c *Cache) PutFields(meta *TableMeta) {
	if meta == nil {
		return
	}
	stored := meta.Clone()
	c.mu.Lock()
	if prev, ok := c.tables[meta.TableKey]; ok && stored.Relations == nil {
		stored.Relations = prev.Relations
	}
	c.tables[meta.TableKey] = stored
	c.mu.Unlock()
	c.notify(meta.TableKey)
}

// PutRelations stores relation descriptors for a table already known to the
// cache. Unknown tables are a no-op: relations without columns render nothing.
func (c *Cache) PutRelations(tableKey string, relations map[string]Relation) {
	c.mu.Lock()
	meta, ok := c.tables[tableKey]
	if ok {
		merged := make(map[string]Relation, len(relations))
		for k, r := range relations {
			r.ForeignKeys = append([]string(nil), r.ForeignKeys...)
			r.DisplayFields = append([]string(nil), r.DisplayFields...)
			merged[k] = r
		}
		meta.Relations = merged
	}
	c.mu.Unlock()
	if ok {
		c.notify(tableKey)
	}
}

// Invalidate drops a table's cached metadata.
func (c *Cache) Invalidate(tableKey string) {
	c.mu.Lock()
	delete(c.tables, tableKey)
	c.mu.Unlock()
	c.notify(tableKey)
}

// Subscribe registers a callback fired with the table key after every cache
// change. The returned function unsubscribes.
func (c *Cache) Subscribe(fn func(tableKey string)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Cache) put(meta *TableMeta) {
	c.mu.Lock()
	c.tables[meta.TableKey] = meta
	c.mu.Unlock()
	c.notify(meta.TableKey)
}

func (c *Cache) notify(tableKey string) {
	c.mu.RLock()
	fns := make([]func(string), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(tableKey)
	}
}
