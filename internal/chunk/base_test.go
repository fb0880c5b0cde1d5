package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
)

func TestBaseChunkSaveLoadRoundTrips(t *testing.T) {
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())

	base := NewBaseChunk(6)
	id1 := model.RootId()
	id2 := model.Climb(model.RootId(), model.Dir(5))

	installAt(t, base, id1, 0, infoPool, dataPool, 1, 1, 1)
	installAt(t, base, id2, 0, infoPool, dataPool, 2, 2, 2)

	data, err := base.Save(schema.PointSize(), infoPool)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	reloaded := NewBaseChunk(6)
	require.NoError(t, reloaded.Load(data, schema.PointSize(), schema, infoPool, dataPool))

	tube1 := reloaded.Tube(id1)
	_, c1 := tube1.GetCell(0)
	p1 := c1.Load()
	require.NotNil(t, p1)
	assert.True(t, p1.Point.Equal(model.Point{X: 1, Y: 1, Z: 1}))

	tube2 := reloaded.Tube(id2)
	_, c2 := tube2.GetCell(0)
	p2 := c2.Load()
	require.NotNil(t, p2)
	assert.True(t, p2.Point.Equal(model.Point{X: 2, Y: 2, Z: 2}))
}

func TestBaseChunkSaveOrdersByAscendingTubeId(t *testing.T) {
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())

	base := NewBaseChunk(6)
	hi := model.Climb(model.RootId(), model.Dir(7))
	lo := model.RootId()

	installAt(t, base, hi, 0, infoPool, dataPool, 9, 0, 0)
	installAt(t, base, lo, 0, infoPool, dataPool, 1, 0, 0)

	data, err := base.Save(schema.PointSize(), infoPool)
	require.NoError(t, err)

	recSize := 8 + int(schema.PointSize())
	require.Len(t, data, 2*recSize)

	firstPoint := schema.ExtractPoint(data[8:recSize])
	assert.Equal(t, float64(1), firstPoint.X, "lower tube id (root) must be written first")
}

func TestBaseChunkLoadWithZeroPointSizeIsNoOp(t *testing.T) {
	schema := model.NewFloat64Schema([]string{"X"}, "X", "X", "X")
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())

	base := NewBaseChunk(6)
	assert.NoError(t, base.Load(nil, 0, schema, infoPool, dataPool))
}

func TestBaseChunkLoadRejectsMisalignedData(t *testing.T) {
	schema := model.NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, schema.PointSize())

	base := NewBaseChunk(6)
	err := base.Load(make([]byte, 5), schema.PointSize(), schema, infoPool, dataPool)
	assert.Error(t, err)
}

func installAt(t *testing.T, base *BaseChunk, id model.Id, tick uint64, infoPool *pool.Pool[pool.InfoNode], dataPool *pool.Pool[pool.DataNode], x, y, z float64) {
	t.Helper()
	h, err := pool.AcquireInfo(infoPool, dataPool, model.EncodeFloat64Record([]float64{x, y, z}), model.Point{X: x, Y: y, Z: z}, 0)
	require.NoError(t, err)
	tube := base.Tube(id)
	require.NoError(t, tube.AddCell(tick, h.Take()))
}
