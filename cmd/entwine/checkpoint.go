package main

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/entwine-go/entwine/internal/chunk"
	"github.com/entwine-go/entwine/internal/config"
	"github.com/entwine-go/entwine/pkg/log"
)

const defaultCheckpointInterval = 30 * time.Second

// startCheckpointScheduler registers a periodic job that trims the cold
// store's resident set and samples the cold-residency gauge
// (ColdChunksResident). Grounded on internal/taskmanager's
// gocron.DurationJob registration pattern (one NewJob call per background
// concern, driven by a single package-level scheduler). Unlike
// engine.save's full drain (engine.go),
// this only evicts chunks that are already idle (refcount zero) — it
// never conflicts with in-flight producers, so it is safe to run
// concurrently with ingestion rather than only after producers quiesce.
func startCheckpointScheduler(cfg *config.Config, eng *engine) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	interval := defaultCheckpointInterval
	if cfg.CheckpointInterval != "" {
		if d, err := time.ParseDuration(cfg.CheckpointInterval); err == nil {
			interval = d
		} else {
			log.Warnf("entwine: invalid checkpointInterval %q, using default: %v", cfg.CheckpointInterval, err)
		}
	}

	_, err = s.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
		trimColdStore(eng)
	}))
	if err != nil {
		return nil, err
	}

	s.Start()
	return s, nil
}

// trimColdStore evicts a bounded number of idle cold chunks per tick so
// memory use stays close to the working-set window even during a long
// ingestion run, rather than only being bounded at final save.
func trimColdStore(eng *engine) {
	if eng.cold == nil {
		return
	}
	const maxPerTick = 8
	ctx := context.Background()
	saveChunk := func(c *chunk.Chunk) []byte {
		data, err := chunk.SaveChunk(c, eng.schema.PointSize(), eng.infoPool)
		if err != nil {
			log.Errorf("entwine: checkpoint: serializing cold chunk: %v", err)
			return nil
		}
		return data
	}

	evicted := 0
	for i := 0; i < maxPerTick; i++ {
		_, ok, err := eng.cold.EvictOne(ctx, saveChunk)
		if err != nil {
			log.Warnf("entwine: checkpoint: evicting cold chunk: %v", err)
			break
		}
		if !ok {
			break
		}
		eng.collectors.ColdChunkEvicted.Inc()
		evicted++
	}
	if evicted > 0 {
		log.Debugf("entwine: checkpoint: trimmed %d cold chunk(s)", evicted)
	}
	eng.collectors.ColdChunksResident.Set(float64(eng.cold.Resident()))
}
