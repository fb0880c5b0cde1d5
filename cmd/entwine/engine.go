package main

import (
	"context"
	"fmt"

	"github.com/entwine-go/entwine/internal/chunk"
	"github.com/entwine-go/entwine/internal/config"
	"github.com/entwine-go/entwine/internal/hierarchy"
	"github.com/entwine-go/entwine/internal/metrics"
	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
	"github.com/entwine-go/entwine/internal/registry"
	"github.com/entwine-go/entwine/pkg/log"
)

// engine bundles everything one build needs: the chunk-store backend, the
// Registry and its pools, and the Hierarchy paired to the same bbox/is3d
// so a producer's Climber and hierarchy.Climber stay in sync. Built once
// per process from config.Config.
type engine struct {
	cfg *config.Config

	schema    *model.Float64Schema
	structure *model.PlainStructure
	rootBBox  model.BBox

	infoPool *pool.Pool[pool.InfoNode]
	dataPool *pool.Pool[pool.DataNode]

	store chunk.Store
	cold  *chunk.ColdStore

	reg *registry.Registry
	h   *hierarchy.Hierarchy

	collectors *metrics.Collectors

	closeStore func() error
}

const baseKey = "base"

// buildEngine wires the chunk-store backend, the pools, the Registry, and
// the Hierarchy from cfg — the translation step from on-disk
// configuration to live in-process objects, grounded on the teacher's
// main.go sequencing (connect storage, then build the layers that sit
// on top of it, in dependency order).
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	schema := model.NewFloat64Schema(cfg.Dims, cfg.XDim, cfg.YDim, cfg.ZDim)
	structure := &model.PlainStructure{
		BaseSpan:    cfg.BaseSpan,
		ColdEnd:     cfg.ColdEnd,
		Is3dFlag:    cfg.Is3d,
		TubularFlag: cfg.Tubular,
		Discard:     cfg.DiscardDuplicates,
	}
	rootBBox := model.NewBBox3d(cfg.BBox[0], cfg.BBox[1], cfg.BBox[2], cfg.BBox[3], cfg.BBox[4], cfg.BBox[5])

	store, closeStore, err := openChunkStore(ctx, cfg.ChunkStore)
	if err != nil {
		return nil, fmt.Errorf("engine: opening chunk store: %w", err)
	}

	infoPool := pool.NewInfoPool(cfg.InfoPoolCapacity)
	dataPool := pool.NewDataPool(cfg.DataPoolCapacity, schema.PointSize())

	base, err := registry.Open(ctx, store, baseKey, structure, schema, infoPool, dataPool)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("engine: opening base chunk: %w", err)
	}

	var cold *chunk.ColdStore
	if structure.HasCold() {
		span := cfg.ColdChunkSpan
		if span == 0 {
			span = 1
		}
		cold = chunk.NewColdStore(store, span, schema.PointSize(), schema, infoPool, dataPool)
	}

	reg := registry.New(structure, schema, rootBBox, base, cold, infoPool, dataPool, nil)

	h := hierarchy.New(rootBBox, hierarchy.NewNodePool(), store, flagBuildName)
	h.SetStep(cfg.HierarchyStep)
	h.SetDepthBegin(cfg.HierarchyDepthBegin)

	return &engine{
		cfg:        cfg,
		schema:     schema,
		structure:  structure,
		rootBBox:   rootBBox,
		infoPool:   infoPool,
		dataPool:   dataPool,
		store:      store,
		cold:       cold,
		reg:        reg,
		h:          h,
		collectors: metrics.NewCollectors(),
		closeStore: closeStore,
	}, nil
}

// openChunkStore selects and opens the Store backend cfg.ChunkStore
// names; the returned close func is a no-op for backends with nothing to
// close (fs, s3).
func openChunkStore(ctx context.Context, cfg config.ChunkStoreConfig) (chunk.Store, func() error, error) {
	switch cfg.Backend {
	case "fs":
		s, err := chunk.OpenFSStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	case "sqlite":
		s, err := chunk.OpenSqliteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "s3":
		s3cfg := chunk.S3StoreConfig{
			Endpoint:     cfg.S3.Endpoint,
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			Region:       cfg.S3.Region,
			UsePathStyle: cfg.S3.UsePathStyle,
		}
		s, err := chunk.NewS3Store(ctx, s3cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("engine: unknown chunk store backend %q", cfg.Backend)
	}
}

// save runs the serial post-ingestion phase: it saves the base chunk,
// pages the hierarchy's slices starting at the root, and, when a cold
// store is wired, flushes every resident cold chunk. Per spec's scheduling model this must only run after every
// producer has quiesced.
func (e *engine) save(ctx context.Context) ([]string, error) {
	if err := e.reg.Save(ctx, e.store, baseKey); err != nil {
		return nil, fmt.Errorf("engine: saving base chunk: %w", err)
	}
	if _, err := e.h.Page(ctx, model.RootId()); err != nil {
		return nil, fmt.Errorf("engine: paging hierarchy: %w", err)
	}

	// Ids() must be read before draining, since EvictOne removes a chunk
	// from residency as soon as it flushes it.
	chunkIds := e.reg.Ids()

	if e.cold != nil {
		saveChunk := func(c *chunk.Chunk) []byte {
			data, err := chunk.SaveChunk(c, e.schema.PointSize(), e.infoPool)
			if err != nil {
				log.Errorf("engine: serializing cold chunk: %v", err)
				return nil
			}
			return data
		}
		for {
			key, evicted, err := e.cold.EvictOne(ctx, saveChunk)
			if err != nil {
				return nil, fmt.Errorf("engine: flushing cold chunk %q: %w", key, err)
			}
			if !evicted {
				break
			}
			log.Infof("engine: flushed cold chunk %q", key)
		}
	}

	return chunkIds, nil
}
