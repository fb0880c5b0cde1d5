package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat64SchemaExtractPoint3d(t *testing.T) {
	schema := NewFloat64Schema([]string{"Intensity", "X", "Y", "Z"}, "X", "Y", "Z")
	require.Equal(t, uint32(32), schema.PointSize())

	data := EncodeFloat64Record([]float64{42, 1, 2, 3})
	p := schema.ExtractPoint(data)
	assert.Equal(t, Point{X: 1, Y: 2, Z: 3}, p)
}

func TestFloat64SchemaExtractPoint2d(t *testing.T) {
	schema := NewFloat64Schema([]string{"X", "Y"}, "X", "Y", "")
	data := EncodeFloat64Record([]float64{5, 6})
	p := schema.ExtractPoint(data)
	assert.Equal(t, Point{X: 5, Y: 6, Z: 0}, p)
}

func TestFloat64SchemaDimsPreservesOrderAndOffsets(t *testing.T) {
	schema := NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	dims := schema.Dims()
	require.Len(t, dims, 3)
	assert.Equal(t, "X", dims[0].Name)
	assert.Equal(t, uint32(0), dims[0].Offset)
	assert.Equal(t, "Y", dims[1].Name)
	assert.Equal(t, uint32(8), dims[1].Offset)
	assert.Equal(t, "Z", dims[2].Name)
	assert.Equal(t, uint32(16), dims[2].Offset)
}

func TestEncodeFloat64RecordRoundTrips(t *testing.T) {
	schema := NewFloat64Schema([]string{"X", "Y", "Z"}, "X", "Y", "Z")
	values := []float64{-1.5, 0, 123456.789}
	data := EncodeFloat64Record(values)
	require.Len(t, data, int(schema.PointSize()))

	p := schema.ExtractPoint(data)
	assert.Equal(t, Point{X: -1.5, Y: 0, Z: 123456.789}, p)
}
