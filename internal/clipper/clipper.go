// Package clipper implements C7: a per-producer, explicitly-passed
// refcount holder over the cold chunks one producer's descents have
// touched. It is never a thread-local global (spec's explicit redesign
// away from ambient thread-local state) — callers construct one per
// producer goroutine and pass it on every AddPoint call alongside that
// goroutine's Climber.
package clipper

// Ref tracks a chunk touched at a particular generation (a chunk's
// generation bumps each time it is reloaded after eviction, so a stale
// unref from a previous load of the same key never decrements the wrong
// counter).
type Ref struct {
	Key        string
	Generation uint64
}

// Clipper accumulates the distinct cold chunks one producer has refed
// since the last Clear, so that Clear can release all of them at once —
// e.g. between files, or at producer shutdown.
type Clipper struct {
	refs []Ref
	seen map[string]bool
}

// New returns an empty Clipper.
func New() *Clipper {
	return &Clipper{seen: make(map[string]bool)}
}

// Hold records that this producer now holds a reference on (key,
// generation), unless it already does. Returns true if this is the first
// time this Clipper has held key; ColdStore.GetChunk increments the
// chunk's refcount only in that case.
func (c *Clipper) Hold(key string, generation uint64) bool {
	if c.seen[key] {
		return false
	}
	c.seen[key] = true
	c.refs = append(c.refs, Ref{Key: key, Generation: generation})
	return true
}

// Refs returns every (key, generation) this Clipper currently holds.
func (c *Clipper) Refs() []Ref {
	return c.refs
}

// Clear empties the Clipper's bookkeeping. Callers must separately call
// the store's Unref for each returned Ref before discarding them, or the
// chunks will never become evictable.
func (c *Clipper) Clear() []Ref {
	refs := c.refs
	c.refs = nil
	c.seen = make(map[string]bool)
	return refs
}
