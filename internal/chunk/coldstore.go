package chunk

import (
	"context"
	"fmt"
	"sync"

	"github.com/entwine-go/entwine/internal/clipper"
	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
)

// coldEntry is one resident cold chunk. The doubly-linked list fields only
// ever link entries whose refcount is zero (entries with live refs are
// never eviction candidates), mirroring lrucache.Cache's "only entries
// with size>0 and no waiters are eviction candidates" rule but keyed on
// refcount instead of a waitingForComputation counter.
type coldEntry struct {
	key        string
	chunk      *Chunk
	generation uint64
	refcount   int
	loaded     bool // false while a Load is in flight for this key
	waiters    int  // goroutines blocked in cond.Wait for this entry's load

	prev, next *coldEntry
}

// ColdStore materializes on-demand tree chunks outside the base range,
// refcounted per spec's Clipper contract: a chunk becomes evictable once
// every Clipper that has touched it has called Unref. Grounded on
// pkg/lrucache.Cache's mutex+cond+doubly-linked-list shape, generalized
// from a size-bounded value cache to a refcount-bounded chunk cache —
// eviction here is gated on refcount reaching zero rather than an entry's
// byte size pushing memory over a limit.
type ColdStore struct {
	backend   Store
	depthSpan uint64
	pointSize uint32
	schema    model.Schema
	infoPool  *pool.Pool[pool.InfoNode]
	dataPool  *pool.Pool[pool.DataNode]

	mu      sync.Mutex
	cond    *sync.Cond
	entries map[string]*coldEntry
	nextGen uint64     // last generation handed to a freshly created entry
	head    *coldEntry // most recently touched zero-refcount entry
	tail    *coldEntry // least recently touched zero-refcount entry
}

// NewColdStore returns a ColdStore backed by backend, chunking the cold
// depth range into spans of depthSpan levels apiece (each span's chunk is
// keyed by the id of its shallowest node, via model.Id.Ancestor). infoPool
// and dataPool are the same pools the Registry hands out live InfoNodes
// from, so a reloaded record is indistinguishable from a freshly inserted
// one once it is back in a Cell.
func NewColdStore(backend Store, depthSpan uint64, pointSize uint32, schema model.Schema, infoPool *pool.Pool[pool.InfoNode], dataPool *pool.Pool[pool.DataNode]) *ColdStore {
	s := &ColdStore{
		backend:   backend,
		depthSpan: depthSpan,
		pointSize: pointSize,
		schema:    schema,
		infoPool:  infoPool,
		dataPool:  dataPool,
		entries:   make(map[string]*coldEntry),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// keyFor computes the storage/cache key for the cold chunk containing id
// at depth: the ancestor id at the start of this id's depth-span,
// rendered as a decimal string. Two node ids in the same span always
// produce the same key because Ancestor walks up exactly
// (depth - spanStart) levels, which only depends on depth modulo
// depthSpan.
func (s *ColdStore) keyFor(id model.Id, depth uint64) string {
	levels := depth % s.depthSpan
	return id.Ancestor(levels).String()
}

// spanDepthBegin returns the shallowest depth belonging to the same span
// as depth.
func (s *ColdStore) spanDepthBegin(depth uint64) uint64 {
	return depth - depth%s.depthSpan
}

// GetChunk returns the resident Chunk for the span containing (id, depth),
// loading it from the backend (or creating it fresh if the backend has
// nothing for this key yet) if it is not already resident, and registers
// c's hold on it so it will not be evicted out from under this producer.
// Blocks only on first touch, while the load (disk/network I/O) is in
// flight; every other goroutine touching the same key waits on the same
// load rather than issuing a duplicate one.
func (s *ColdStore) GetChunk(ctx context.Context, id model.Id, depth uint64, c *clipper.Clipper) (*Chunk, error) {
	key := s.keyFor(id, depth)

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.nextGen++
		entry = &coldEntry{key: key, generation: s.nextGen}
		s.entries[key] = entry
		s.mu.Unlock()

		loaded, err := s.load(ctx, key, depth)
		s.mu.Lock()
		if err != nil {
			delete(s.entries, key)
			s.mu.Unlock()
			s.cond.Broadcast()
			return nil, err
		}
		entry.chunk = loaded
		entry.loaded = true
		s.cond.Broadcast()
	} else {
		for !entry.loaded {
			entry.waiters++
			s.cond.Wait()
			entry.waiters--
		}
	}

	// Hold dedups per (Clipper, key): a producer's Clipper accumulates at
	// most one Ref per key between Clears, so the store-side refcount must
	// only move in step with genuinely new holds, not every GetChunk call
	// a single Clipper makes against an already-held chunk.
	if c.Hold(key, entry.generation) {
		if entry.refcount == 0 {
			s.unlink(entry)
		}
		entry.refcount++
	}
	s.mu.Unlock()

	return entry.chunk, nil
}

func (s *ColdStore) load(ctx context.Context, key string, depth uint64) (*Chunk, error) {
	spanBegin := s.spanDepthBegin(depth)
	data, found, err := s.backend.TryGet(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("chunk: loading %q: %w", key, err)
	}
	c := NewChunk(spanBegin, spanBegin+s.depthSpan)
	if !found {
		return c, nil
	}
	if err := deserializeChunk(c, data, s.pointSize, s.schema, s.infoPool, s.dataPool); err != nil {
		return nil, fmt.Errorf("chunk: parsing %q: %w", key, err)
	}
	return c, nil
}

// Unref releases one producer's hold on every chunk named in refs. A
// chunk whose refcount reaches zero becomes an eviction candidate (moved
// to the head of the idle list) but is not evicted immediately — call
// EvictOne to actually reclaim memory, typically from a periodic
// checkpoint task.
func (s *ColdStore) Unref(refs []clipper.Ref) {
	if len(refs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range refs {
		entry, ok := s.entries[r.Key]
		if !ok || entry.generation != r.Generation {
			continue
		}
		entry.refcount--
		if entry.refcount <= 0 {
			entry.refcount = 0
			s.insertFront(entry)
		}
	}
}

// EvictOne evicts the single least-recently-touched zero-refcount chunk,
// calling save to obtain its bytes before removing it from residency. The
// next GetChunk for the same span starts a fresh load with the
// generation bumped, so any Clipper still holding a stale (key,
// generation) pair from before this eviction is harmlessly ignored by a
// later Unref. Returns the evicted key and whether anything was evicted.
func (s *ColdStore) EvictOne(ctx context.Context, save func(*Chunk) []byte) (string, bool, error) {
	s.mu.Lock()
	victim := s.tail
	if victim == nil {
		s.mu.Unlock()
		return "", false, nil
	}
	s.unlink(victim)
	delete(s.entries, victim.key)
	s.mu.Unlock()

	data := save(victim.chunk)
	if err := s.backend.Put(ctx, victim.key, data); err != nil {
		return victim.key, false, fmt.Errorf("chunk: saving evicted %q: %w", victim.key, err)
	}
	return victim.key, true, nil
}

// Resident reports how many cold chunks are currently loaded in memory.
func (s *ColdStore) Resident() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ResidentKeys returns every currently-loaded chunk's key, analogous to
// registry.cpp's Registry::ids (there, the set of on-disk cold chunk
// Ids known to the Cold store; here, the chunk store's own key space).
func (s *ColdStore) ResidentKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

func (s *ColdStore) insertFront(e *coldEntry) {
	e.next = s.head
	e.prev = nil
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *ColdStore) unlink(e *coldEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if e == s.head {
		s.head = e.next
	}
	if e == s.tail {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}
