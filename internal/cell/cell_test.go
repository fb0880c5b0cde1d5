package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entwine-go/entwine/internal/model"
	"github.com/entwine-go/entwine/internal/pool"
)

func acquireTestInfo(t *testing.T, point model.Point) pool.Handle[pool.InfoNode] {
	t.Helper()
	infoPool := pool.NewInfoPool(0)
	dataPool := pool.NewDataPool(0, 8)
	h, err := pool.AcquireInfo(infoPool, dataPool, []byte{1, 2, 3, 4, 5, 6, 7, 8}, point, 0)
	require.NoError(t, err)
	return h
}

func TestCellLoadOnEmptyReturnsNil(t *testing.T) {
	var c Cell
	assert.True(t, c.Empty())
	assert.Nil(t, c.Load())
}

func TestCellSwapIntoEmptySucceeds(t *testing.T) {
	var c Cell
	h := acquireTestInfo(t, model.Point{X: 1})

	ok := c.Swap(&h)
	assert.True(t, ok)
	assert.True(t, h.Empty(), "ownership must transfer into the Cell")
	assert.False(t, c.Empty())
	assert.Equal(t, model.Point{X: 1}, c.Load().Point)
}

func TestCellSwapIntoOccupiedFails(t *testing.T) {
	var c Cell
	h1 := acquireTestInfo(t, model.Point{X: 1})
	h2 := acquireTestInfo(t, model.Point{X: 2})

	require.True(t, c.Swap(&h1))
	ok := c.Swap(&h2)
	assert.False(t, ok)
	assert.False(t, h2.Empty(), "a lost Swap must leave the caller's handle untouched")
	assert.Equal(t, model.Point{X: 1}, c.Load().Point)
}

func TestCellSwapPanicsOnEmptyHandle(t *testing.T) {
	var c Cell
	var empty pool.Handle[pool.InfoNode]
	assert.Panics(t, func() { c.Swap(&empty) })
}

func TestCellSwapExpectedSucceedsWhenMatching(t *testing.T) {
	var c Cell
	h1 := acquireTestInfo(t, model.Point{X: 1})
	h2 := acquireTestInfo(t, model.Point{X: 2})

	require.True(t, c.Swap(&h1))
	expected := c.Load()

	displaced, ok := c.SwapExpected(&h2, expected)
	assert.True(t, ok)
	require.NotNil(t, displaced)
	assert.Equal(t, model.Point{X: 1}, displaced.Val.Point)
	assert.True(t, h2.Empty())
	assert.Equal(t, model.Point{X: 2}, c.Load().Point)
}

func TestCellSwapExpectedFailsOnStaleExpectation(t *testing.T) {
	var c Cell
	h1 := acquireTestInfo(t, model.Point{X: 1})
	h2 := acquireTestInfo(t, model.Point{X: 2})
	h3 := acquireTestInfo(t, model.Point{X: 3})

	require.True(t, c.Swap(&h1))

	// swap in h2 so the occupant moves out from under a caller still
	// expecting the original
	expected := c.Load()
	_, ok := c.SwapExpected(&h2, expected)
	require.True(t, ok)

	displaced, ok := c.SwapExpected(&h3, expected)
	assert.False(t, ok)
	assert.Nil(t, displaced)
	assert.False(t, h3.Empty(), "a failed SwapExpected must leave the caller's handle untouched")
}

func TestCellSwapExpectedFailsOnEmptyCell(t *testing.T) {
	var c Cell
	h := acquireTestInfo(t, model.Point{X: 1})
	_, ok := c.SwapExpected(&h, &pool.InfoNode{})
	assert.False(t, ok)
	assert.False(t, h.Empty())
}
