// Package producer is a reference point-source producer: it reads a CSV
// file of fixed-column float64 records, turns each row into a
// model.Point via a model.Float64Schema, and drives the insertion loop
// (acquire from the pools, descend with a Climber, call
// Registry.AddPoint, which carries displaced points onward itself)
// against one Registry. It
// exists for demos and tests — the engine itself treats "a producer" as
// an external collaborator (spec.md's point-source parsing is explicitly
// out of scope) and only depends on the shapes this package happens to
// implement.
package producer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/entwine-go/entwine/internal/clipper"
	"github.com/entwine-go/entwine/internal/climber"
	"github.com/entwine-go/entwine/internal/hierarchy"
	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
	"github.com/entwine-go/entwine/internal/registry"
	"github.com/entwine-go/entwine/pkg/log"
)

// Stats accumulates one run's outcome counts, split by DropReason so
// callers (internal/catalog.RecordSource, internal/metrics) can report
// more than a single pass/fail tally.
type Stats struct {
	Inserted    int64
	Duplicate   int64
	OutOfRange  int64
	MaxDepth    int64
	Errored     int64
}

// Observer receives one outcome per point, in addition to the
// aggregated Stats a run returns. Wiring code uses it to feed
// internal/metrics.Collectors.ObserveAddPoint without this package
// importing internal/metrics directly.
type Observer interface {
	Observe(ok bool, reason registry.DropReason)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ok bool, reason registry.DropReason)

func (f ObserverFunc) Observe(ok bool, reason registry.DropReason) { f(ok, reason) }

// Run reads every record out of r as CSV (header-less, one row per
// point, columns in schema's declared field order), acquires an
// InfoNode/DataNode pair per row, and calls reg.AddPoint once per row
// with a fresh Climber rooted at rootBBox. Displacement is carried through
// inside AddPoint itself; Run makes no retry. One Clipper serves every row
// of the run, and its holds are unrefed when Run returns.
// origin is the source file id recorded on every InfoNode (spec's
// "origin id of the source record").
func Run(ctx context.Context, reg *registry.Registry, hc func() *hierarchy.Climber, schema *model.Float64Schema, infoPool *pool.Pool[pool.InfoNode], dataPool *pool.Pool[pool.DataNode], rootBBox model.BBox, is3d bool, maxDepth uint64, origin uint64, r io.Reader, obs Observer) (Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(schema.Dims())

	var stats Stats
	clip := clipper.New()
	// every cold chunk this file's points touched must be unrefed before
	// Run returns, win or lose, so the registry's cold store can ever see
	// this clipper's holds drop to zero and become eviction-eligible.
	defer func() { reg.Unref(clip.Clear()) }()

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("producer: reading csv row: %w", err)
		}

		record, err := encodeRow(row, len(schema.Dims()))
		if err != nil {
			stats.Errored++
			log.Warnf("producer: skipping malformed row: %v", err)
			continue
		}

		point := schema.ExtractPoint(record)

		handle, err := pool.AcquireInfo(infoPool, dataPool, record, point, origin)
		if err != nil {
			return stats, fmt.Errorf("producer: acquiring pools: %w", err)
		}

		var counter climber.Counter
		if hc != nil {
			counter = hc()
		}
		cl := climber.New(rootBBox, is3d, counter)

		ok, reason, err := reg.AddPoint(ctx, &handle, cl, clip, maxDepth)
		if err != nil {
			handle.Release()
			return stats, fmt.Errorf("producer: adding point: %w", err)
		}
		if obs != nil {
			obs.Observe(ok, reason)
		}

		switch {
		case ok:
			stats.Inserted++
		case reason == registry.DropReasonDuplicate:
			stats.Duplicate++
		case reason == registry.DropReasonOutOfRange:
			stats.OutOfRange++
		case reason == registry.DropReasonMaxDepth:
			stats.MaxDepth++
		}
	}

	return stats, nil
}

// RunFile opens path and delegates to Run, closing the file on return.
func RunFile(ctx context.Context, reg *registry.Registry, hc func() *hierarchy.Climber, schema *model.Float64Schema, infoPool *pool.Pool[pool.InfoNode], dataPool *pool.Pool[pool.DataNode], rootBBox model.BBox, is3d bool, maxDepth uint64, origin uint64, path string, obs Observer) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("producer: opening %q: %w", path, err)
	}
	defer f.Close()

	return Run(ctx, reg, hc, schema, infoPool, dataPool, rootBBox, is3d, maxDepth, origin, f, obs)
}

func encodeRow(row []string, want int) ([]byte, error) {
	if len(row) != want {
		return nil, fmt.Errorf("expected %d fields, got %d", want, len(row))
	}
	values := make([]float64, want)
	for i, field := range row {
		v, err := parseFloat(field)
		if err != nil {
			return nil, fmt.Errorf("field %d (%q): %w", i, field, err)
		}
		values[i] = v
	}
	return model.EncodeFloat64Record(values), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
