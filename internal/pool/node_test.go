package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entwine-go/entwine/internal/model"
)

func TestAcquireInfoWiresDataAndPoint(t *testing.T) {
	infoPool := NewInfoPool(0)
	dataPool := NewDataPool(0, 24)

	record := model.EncodeFloat64Record([]float64{1, 2, 3})
	h, err := AcquireInfo(infoPool, dataPool, record, model.Point{X: 1, Y: 2, Z: 3}, 5)
	require.NoError(t, err)
	defer h.Release()

	info := h.Value()
	assert.Equal(t, model.Point{X: 1, Y: 2, Z: 3}, info.Point)
	assert.Equal(t, uint64(5), info.Origin)
	require.NotNil(t, info.Data())
	assert.Equal(t, record, info.Data().Bytes)
}

func TestAcquireInfoReleasesDataNodeWhenInfoPoolExhausted(t *testing.T) {
	infoPool := NewBounded(0, func() InfoNode { return InfoNode{} }, func(i *InfoNode) {})
	dataPool := NewDataPool(1, 8)

	_, err := AcquireInfo(infoPool, dataPool, []byte{1, 2, 3, 4, 5, 6, 7, 8}, model.Point{}, 0)
	assert.True(t, errors.Is(err, ErrExhausted))

	// the DataNode acquired before the InfoPool failure must have been
	// released back, leaving the (single-capacity) data pool acquirable.
	h, err := dataPool.AcquireOne()
	require.NoError(t, err)
	h.Release()
}

func TestInfoNodeReleaseAlsoReleasesDataNode(t *testing.T) {
	infoPool := NewInfoPool(1)
	dataPool := NewDataPool(1, 8)

	record := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h, err := AcquireInfo(infoPool, dataPool, record, model.Point{}, 0)
	require.NoError(t, err)

	h.Release()

	// both pools must be acquirable again now that the pair was released
	_, err = infoPool.AcquireOne()
	require.NoError(t, err)
	_, err = dataPool.AcquireOne()
	require.NoError(t, err)
}

func TestResetClearsInfoNodeFields(t *testing.T) {
	infoPool := NewInfoPool(1)
	dataPool := NewDataPool(1, 8)

	record := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	h, err := AcquireInfo(infoPool, dataPool, record, model.Point{X: 9, Y: 9, Z: 9}, 42)
	require.NoError(t, err)
	h.Release()

	h2, err := infoPool.AcquireOne()
	require.NoError(t, err)
	info := h2.Value()
	assert.Equal(t, model.Point{}, info.Point)
	assert.Equal(t, uint64(0), info.Origin)
	assert.Nil(t, info.Data())
}

func TestReleasePairIsNilSafe(t *testing.T) {
	infoPool := NewInfoPool(1)
	assert.NotPanics(t, func() { ReleasePair(infoPool, nil) })
}
