package state

import (
	"sort"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/rmaker/homectl/pkg/datamodel"
)

// Entry is a cached attribute value. Values are kept in device scale.
type Entry struct {
	Key     Key
	Value   int64
	Source  Source
	Seq     uint64
	Updated time.Time
}

// ChangeFunc observes cache updates. It is called without the cache lock held.
type ChangeFunc func(Entry)

// WriteToken is returned by BeginWrite and consumed by CommitWrite.
type WriteToken struct {
	key Key
	seq uint64
}

// Key returns the attribute the write targets.
func (t WriteToken) Key() Key { return t.key }

// CacheConfig configures a Cache.
type CacheConfig struct {
	// Persister receives every update (optional).
	Persister Persister

	// LoggerFactory for creating loggers. Defaults to the pion default factory.
	LoggerFactory logging.LoggerFactory

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Cache is the per-node, per-attribute device-state store.
type Cache struct {
	persister Persister
	log       logging.LeveledLogger
	now       func() time.Time

	mu         sync.Mutex
	seq        uint64
	entries    map[Key]Entry
	lastReport map[Key]uint64
	observers  map[int]ChangeFunc
	nextObs    int

	// saveMu orders persister writes; saved holds the last persisted seq
	// per key.
	saveMu sync.Mutex
	saved  map[Key]uint64
}

// NewCache creates an empty cache.
func NewCache(cfg CacheConfig) *Cache {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		persister:  cfg.Persister,
		log:        lf.NewLogger("state"),
		now:        now,
		entries:    make(map[Key]Entry),
		lastReport: make(map[Key]uint64),
		observers:  make(map[int]ChangeFunc),
		saved:      make(map[Key]uint64),
	}
}

// Get returns the cached value for k.
func (c *Cache) Get(k Key) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	return e.Value, ok
}

// Entry returns the full cache entry for k.
func (c *Cache) Entry(k Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	return e, ok
}

// Set stores v for k. Last write wins.
func (c *Cache) Set(k Key, v int64, src Source) Entry {
	c.mu.Lock()
	e := c.storeLocked(k, v, src)
	c.mu.Unlock()

	c.publish(e)
	return e
}

func (c *Cache) storeLocked(k Key, v int64, src Source) Entry {
	c.seq++
	e := Entry{Key: k, Value: v, Source: src, Seq: c.seq, Updated: c.now()}
	c.entries[k] = e
	if src == SourceReport {
		c.lastReport[k] = c.seq
	}
	return e
}

// BeginWrite marks the start of a write to k.
func (c *Cache) BeginWrite(k Key) WriteToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return WriteToken{key: k, seq: c.seq}
}

// CommitWrite stores the confirmed value of a write. It returns false and
// leaves the cache untouched if a report for the same attribute arrived after
// BeginWrite; the device report is newer than the confirmation.
func (c *Cache) CommitWrite(tok WriteToken, v int64) bool {
	c.mu.Lock()
	if c.lastReport[tok.key] > tok.seq {
		c.mu.Unlock()
		c.log.Debugf("write to %s superseded by report", tok.key)
		return false
	}
	e := c.storeLocked(tok.key, v, SourceWrite)
	c.mu.Unlock()

	c.publish(e)
	return true
}

// Snapshot returns all entries ordered by key.
func (c *Cache) Snapshot() []Entry {
	c.mu.Lock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.Unlock()

	sortEntries(out)
	return out
}

// Node returns the entries of one node ordered by key.
func (c *Cache) Node(node datamodel.NodeID) []Entry {
	var out []Entry
	for _, e := range c.Snapshot() {
		if e.Key.Node == node {
			out = append(out, e)
		}
	}
	return out
}

// Load seeds the cache from the persister. Existing entries win over
// persisted ones.
func (c *Cache) Load() error {
	if c.persister == nil {
		return nil
	}
	stored, err := c.persister.LoadEntries()
	if err != nil {
		return err
	}

	c.mu.Lock()
	for _, e := range stored {
		if _, ok := c.entries[e.Key]; ok {
			continue
		}
		c.seq++
		e.Source = SourceLoad
		e.Seq = c.seq
		c.entries[e.Key] = e
	}
	c.mu.Unlock()

	c.log.Debugf("loaded %d entries", len(stored))
	return nil
}

// OnChange registers fn for every update. The returned func unregisters it.
func (c *Cache) OnChange(fn ChangeFunc) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Cache) publish(e Entry) {
	c.save(e)

	c.mu.Lock()
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]ChangeFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.observers[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// save persists e unless a newer entry for the same key was already saved.
func (c *Cache) save(e Entry) {
	if c.persister == nil {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	if c.saved[e.Key] > e.Seq {
		return
	}
	if err := c.persister.SaveEntry(e); err != nil {
		c.log.Warnf("persist %s: %v", e.Key, err)
		return
	}
	c.saved[e.Key] = e.Seq
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool { return keyLess(es[i].Key, es[j].Key) })
}

func keyLess(a, b Key) bool {
	switch {
	case a.Node != b.Node:
		return a.Node < b.Node
	case a.Endpoint != b.Endpoint:
		return a.Endpoint < b.Endpoint
	case a.Cluster != b.Cluster:
		return a.Cluster < b.Cluster
	default:
		return a.Attribute < b.Attribute
	}
}
