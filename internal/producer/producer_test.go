package producer

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entwine-go/entwine/internal/chunk"
	"github.com/entwine-go/entwine/internal/hierarchy"
	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
	"github.com/entwine-go/entwine/internal/registry"
)

func newTestRegistry(t *testing.T) (*registry.Registry, model.BBox, *hierarchy.Hierarchy) {
	t.Helper()
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	structure := &model.PlainStructure{BaseSpan: 6, Is3dFlag: true, Discard: true}

	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())
	base := chunk.NewBaseChunk(structure.BaseSpan)

	reg := registry.New(structure, schema, bbox, base, nil, infoPool, dataPool, nil)
	h := hierarchy.New(bbox, hierarchy.NewNodePool(), nil, "")

	return reg, bbox, h
}

func TestRunInsertsEveryDistinctPoint(t *testing.T) {
	reg, bbox, h := newTestRegistry(t)
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())

	csv := "1,1,1\n7,7,7\n1,7,1\n4,4,4\n"
	hc := func() *hierarchy.Climber { return hierarchy.NewClimber(h, true) }

	stats, err := Run(context.Background(), reg, hc, schema, infoPool, dataPool, bbox, true, 0, 1, strings.NewReader(csv), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Inserted)
	assert.EqualValues(t, 0, stats.Duplicate)
}

func TestRunDetectsDuplicatePoint(t *testing.T) {
	reg, bbox, h := newTestRegistry(t)
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())

	csv := "1,1,1\n1,1,1\n"
	hc := func() *hierarchy.Climber { return hierarchy.NewClimber(h, true) }

	stats, err := Run(context.Background(), reg, hc, schema, infoPool, dataPool, bbox, true, 0, 1, strings.NewReader(csv), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Inserted)
	assert.EqualValues(t, 1, stats.Duplicate)
}

func TestRunSkipsMalformedRowsAndContinues(t *testing.T) {
	reg, bbox, h := newTestRegistry(t)
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())

	csv := "1,1,1\nnot-a-number,2,2\n3,3,3\n"
	hc := func() *hierarchy.Climber { return hierarchy.NewClimber(h, true) }

	stats, err := Run(context.Background(), reg, hc, schema, infoPool, dataPool, bbox, true, 0, 1, strings.NewReader(csv), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Inserted)
	assert.EqualValues(t, 1, stats.Errored)
}

func TestRunMaxDepthDropsDisplacedPointBeforeItCanDescend(t *testing.T) {
	reg, bbox, h := newTestRegistry(t)
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())

	// (1,1,1) wins the root cell first; (3,3,3) is strictly closer to the
	// root's midpoint (4,4,4) and displaces it, pushing (1,1,1) down to
	// depth 1 — which maxDepth=1 forbids, so it is dropped rather than
	// continuing to descend.
	csv := "1,1,1\n3,3,3\n"
	hc := func() *hierarchy.Climber { return hierarchy.NewClimber(h, true) }

	stats, err := Run(context.Background(), reg, hc, schema, infoPool, dataPool, bbox, true, 1, 1, strings.NewReader(csv), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Inserted)
	assert.EqualValues(t, 1, stats.MaxDepth)
}

func TestRunUnrefsColdChunksSoTheyBecomeEvictable(t *testing.T) {
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	// base only covers depth 0; every point that descends past the root
	// falls into the cold range, so this run cannot finish without
	// exercising ColdStore.GetChunk repeatedly against the same Clipper.
	structure := &model.PlainStructure{BaseSpan: 1, Is3dFlag: true, Discard: true}

	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())
	base := chunk.NewBaseChunk(structure.BaseSpan)
	backend := newMemStoreForTest()
	cold := chunk.NewColdStore(backend, 4, schema.PointSize(), schema, infoPool, dataPool)

	reg := registry.New(structure, schema, bbox, base, cold, infoPool, dataPool, nil)
	h := hierarchy.New(bbox, hierarchy.NewNodePool(), nil, "")
	hc := func() *hierarchy.Climber { return hierarchy.NewClimber(h, true) }

	// every point lands at depth >= 1, and several share the same cold
	// chunk span so the same Clipper touches it more than once.
	csv := "1,1,1\n2,2,2\n3,3,3\n5,5,5\n6,6,6\n7,7,7\n"
	stats, err := Run(context.Background(), reg, hc, schema, infoPool, dataPool, bbox, true, 0, 1, strings.NewReader(csv), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 6, stats.Inserted)

	require.Greater(t, cold.Resident(), 0, "the run must have touched at least one cold chunk")

	for {
		_, evicted, err := cold.EvictOne(context.Background(), func(c *chunk.Chunk) []byte { return nil })
		require.NoError(t, err)
		if !evicted {
			break
		}
	}

	assert.Equal(t, 0, cold.Resident(), "every chunk touched by the finished run must have been unrefed down to zero and fully drained")
}

type memStoreForTest struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStoreForTest() *memStoreForTest {
	return &memStoreForTest{data: make(map[string][]byte)}
}

func (s *memStoreForTest) TryGet(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	return data, ok, nil
}

func (s *memStoreForTest) Put(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *memStoreForTest) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok, nil
}

func TestRunReportsOutcomesToObserver(t *testing.T) {
	reg, bbox, h := newTestRegistry(t)
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())

	var observed []bool
	obs := ObserverFunc(func(ok bool, _ registry.DropReason) {
		observed = append(observed, ok)
	})

	csv := "1,1,1\n1,1,1\n"
	hc := func() *hierarchy.Climber { return hierarchy.NewClimber(h, true) }

	_, err := Run(context.Background(), reg, hc, schema, infoPool, dataPool, bbox, true, 0, 1, strings.NewReader(csv), obs)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, observed)
}
