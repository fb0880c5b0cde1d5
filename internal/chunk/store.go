package chunk

import "context"

// Store persists serialized chunk bytes out of process, keyed by a chunk's
// storage key (see ColdStore.keyFor). Concrete backends: sqlite
// (internal/chunk/sqlitestore.go) for local/single-node builds, S3
// (internal/chunk/s3store.go) for distributed ones.
type Store interface {
	// TryGet returns the chunk's bytes and true, or (nil, false) if no
	// object exists yet for key.
	TryGet(ctx context.Context, key string) ([]byte, bool, error)
	// Put writes (or overwrites) the bytes stored at key.
	Put(ctx context.Context, key string, data []byte) error
	// Exists reports whether key has been written, without fetching it.
	Exists(ctx context.Context, key string) (bool, error)
}
