package cell

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
)

func newTubeFixture() (*pool.Pool[pool.InfoNode], *pool.Pool[pool.DataNode]) {
	return pool.NewInfoPool(0), pool.NewDataPool(0, 8)
}

func acquireHandle(t *testing.T, infoPool *pool.Pool[pool.InfoNode], dataPool *pool.Pool[pool.DataNode], x float64) pool.Handle[pool.InfoNode] {
	t.Helper()
	h, err := pool.AcquireInfo(infoPool, dataPool, model.EncodeFloat64Record([]float64{x}), model.Point{X: x}, 0)
	require.NoError(t, err)
	return h
}

func TestTubeEmptyBeforeAnyGetCell(t *testing.T) {
	tube := NewTube()
	assert.True(t, tube.Empty())
}

func TestGetCellSameTickReturnsPrimaryWithoutLocking(t *testing.T) {
	tube := NewTube()
	created1, c1 := tube.GetCell(5)
	created2, c2 := tube.GetCell(5)

	assert.True(t, created1)
	assert.False(t, created2)
	assert.Same(t, c1, c2)
	assert.False(t, tube.Empty())
}

func TestGetCellDifferentTicksUseSecondaryMap(t *testing.T) {
	tube := NewTube()
	_, primary := tube.GetCell(1)
	created, secondary := tube.GetCell(2)

	assert.True(t, created)
	assert.NotSame(t, primary, secondary)

	createdAgain, secondaryAgain := tube.GetCell(2)
	assert.False(t, createdAgain)
	assert.Same(t, secondary, secondaryAgain)
}

func TestGetCellConcurrentSameTickOnlyOneCreator(t *testing.T) {
	tube := NewTube()
	const workers = 32
	var wg sync.WaitGroup
	createdCount := make([]bool, workers)
	cells := make([]*Cell, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			created, c := tube.GetCell(7)
			createdCount[idx] = created
			cells[idx] = c
		}(i)
	}
	wg.Wait()

	total := 0
	for _, created := range createdCount {
		if created {
			total++
		}
	}
	assert.Equal(t, 1, total, "exactly one goroutine must win creation credit for a given tick")
	for i := 1; i < workers; i++ {
		assert.Same(t, cells[0], cells[i])
	}
}

func TestAddCellDuplicateTickIsRejected(t *testing.T) {
	infoPool, dataPool := newTubeFixture()
	tube := NewTube()
	h := acquireHandle(t, infoPool, dataPool, 1)
	require.NoError(t, tube.AddCell(3, h.Take()))

	h2 := acquireHandle(t, infoPool, dataPool, 2)
	err := tube.AddCell(3, h2.Take())
	assert.Error(t, err)
}

func TestSaveOrdersPrimaryFirstThenSecondariesAscending(t *testing.T) {
	infoPool, dataPool := newTubeFixture()
	tube := NewTube()

	// tick 5 becomes primary (first GetCell call), then 1 and 9 go to the
	// secondary map.
	_, primary := tube.GetCell(5)
	h5 := acquireHandle(t, infoPool, dataPool, 5)
	require.True(t, primary.Swap(&h5))

	_, c1 := tube.GetCell(1)
	h1 := acquireHandle(t, infoPool, dataPool, 1)
	require.True(t, c1.Swap(&h1))

	_, c9 := tube.GetCell(9)
	h9 := acquireHandle(t, infoPool, dataPool, 9)
	require.True(t, c9.Swap(&h9))

	out := tube.Save(8, infoPool)
	// primary (5) first, then secondaries ascending (1, 9)
	expected := append(append(
		model.EncodeFloat64Record([]float64{5}),
		model.EncodeFloat64Record([]float64{1})...),
		model.EncodeFloat64Record([]float64{9})...)
	assert.Equal(t, expected, out)
}

func TestSaveBasePrependsTubeId(t *testing.T) {
	infoPool, dataPool := newTubeFixture()
	tube := NewTube()
	_, c := tube.GetCell(0)
	h := acquireHandle(t, infoPool, dataPool, 42)
	require.True(t, c.Swap(&h))

	out := tube.SaveBase(0xABCD, 8, infoPool)
	require.Len(t, out, 8+8)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0xAB, 0xCD}, out[:8])
	assert.Equal(t, model.EncodeFloat64Record([]float64{42}), out[8:])
}

func TestAcquireDrainsAndReleasesWithoutReturningBytes(t *testing.T) {
	infoPool, dataPool := newTubeFixture()
	tube := NewTube()
	_, c1 := tube.GetCell(1)
	h1 := acquireHandle(t, infoPool, dataPool, 1)
	require.True(t, c1.Swap(&h1))
	_, c2 := tube.GetCell(2)
	h2 := acquireHandle(t, infoPool, dataPool, 2)
	require.True(t, c2.Swap(&h2))

	n := tube.Acquire(infoPool)
	assert.Equal(t, 2, n)
	assert.True(t, c1.Empty())
	assert.True(t, c2.Empty())
}

func TestDrainTransfersOwnershipWithoutReleasing(t *testing.T) {
	infoPool, dataPool := newTubeFixture()
	tube := NewTube()
	_, c1 := tube.GetCell(1)
	h1 := acquireHandle(t, infoPool, dataPool, 11)
	require.True(t, c1.Swap(&h1))

	drained := tube.Drain()
	require.Len(t, drained, 1)
	assert.Equal(t, uint64(1), drained[0].Tick)
	assert.Equal(t, float64(11), drained[0].Node.Val.Point.X)
	assert.True(t, c1.Empty())

	// ownership was transferred, not released — the caller must be able
	// to release it itself without double-release issues.
	infoPool.Release(drained[0].Node)
}

func TestDrainOnEmptyTubeReturnsEmpty(t *testing.T) {
	tube := NewTube()
	assert.Empty(t, tube.Drain())
}
