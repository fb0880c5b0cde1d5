package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entwine-go/entwine/internal/chunk"
	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
	"github.com/entwine-go/entwine/pkg/log"
)

// Open constructs a Registry's base chunk either by loading previously
// saved base data from backend, or by starting empty if none exists yet
// — the "No base data found" fallback path from registry.cpp's
// id-list constructor, reported here as a log line rather than a stdout
// println per the teacher's logging conventions.
func Open(ctx context.Context, backend chunk.Store, baseKey string, structure model.Structure, schema model.Schema, infoPool *pool.Pool[pool.InfoNode], dataPool *pool.Pool[pool.DataNode]) (*chunk.BaseChunk, error) {
	base := chunk.NewBaseChunk(structure.BaseIndexBegin() + structure.BaseIndexSpan())

	data, found, err := backend.TryGet(ctx, baseKey)
	if err != nil {
		return nil, fmt.Errorf("registry: opening base chunk %q: %w", baseKey, err)
	}
	if !found {
		log.Infof("registry: no base data found at %q, starting fresh", baseKey)
		return base, nil
	}
	if err := base.Load(data, schema.PointSize(), schema, infoPool, dataPool); err != nil {
		return nil, fmt.Errorf("registry: loading base chunk %q: %w", baseKey, err)
	}
	return base, nil
}

// Save flushes the registry's base chunk to backend under baseKey. Per
// registry.cpp's Registry::save, this is a serial phase run after every
// producer has quiesced: the base chunk is not safe to save concurrently
// with in-flight AddPoint calls touching it.
func (r *Registry) Save(ctx context.Context, backend chunk.Store, baseKey string) error {
	data, err := r.base.Save(r.schema.PointSize(), r.infoPool)
	if err != nil {
		return fmt.Errorf("registry: serializing base chunk: %w", err)
	}
	if err := backend.Put(ctx, baseKey, data); err != nil {
		return fmt.Errorf("registry: saving base chunk %q: %w", baseKey, err)
	}
	return nil
}

// Ids returns the set of cold chunk keys currently resident, mirroring
// registry.cpp's Registry::ids (there, the set of on-disk cold chunk
// ids; here, since cold chunks are keyed by string rather than a single
// Id per chunk, the chunk store's own key space).
func (r *Registry) Ids() []string {
	if r.cold == nil {
		return nil
	}
	return r.cold.ResidentKeys()
}

// ToJSON renders the registry's ids as a JSON array, mirroring
// registry.cpp's Registry::toJson (there, the Cold store's own
// toJson; an empty Registry with no cold range reports an empty array
// rather than Json::Value()'s null, which keeps the output a stable
// type for diagnostics consumers).
func (r *Registry) ToJSON() ([]byte, error) {
	ids := r.Ids()
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("registry: marshaling ids: %w", err)
	}
	return data, nil
}
