package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSqDist3dIncludesZAxis(t *testing.T) {
	a := Point{X: 0, Y: 0, Z: 0}
	b := Point{X: 1, Y: 2, Z: 2}
	assert.Equal(t, float64(9), a.SqDist3d(b))
}

func TestSqDist2dIgnoresZAxis(t *testing.T) {
	a := Point{X: 0, Y: 0, Z: 0}
	b := Point{X: 3, Y: 4, Z: 100}
	assert.Equal(t, float64(25), a.SqDist2d(b))
}

func TestSqDistPicksByIs3d(t *testing.T) {
	a := Point{X: 0, Y: 0, Z: 0}
	b := Point{X: 3, Y: 4, Z: 5}
	assert.Equal(t, a.SqDist3d(b), a.SqDist(b, true))
	assert.Equal(t, a.SqDist2d(b), a.SqDist(b, false))
}

func TestPointEqualIsBitExact(t *testing.T) {
	a := Point{X: 1.5, Y: 2.5, Z: 3.5}
	b := Point{X: 1.5, Y: 2.5, Z: 3.5}
	assert.True(t, a.Equal(b))

	c := Point{X: 1.5 + 1e-12, Y: 2.5, Z: 3.5}
	assert.False(t, a.Equal(c))
}

func TestPointValidRejectsNaNAndInf(t *testing.T) {
	assert.True(t, Point{X: 1, Y: 2, Z: 3}.Valid())
	assert.False(t, Point{X: math.NaN(), Y: 0, Z: 0}.Valid())
	assert.False(t, Point{X: math.Inf(1), Y: 0, Z: 0}.Valid())
	assert.False(t, Point{X: 0, Y: math.Inf(-1), Z: 0}.Valid())
}
