package climber

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/entwine-go/entwine/internal/model"
)

type fakeCounter struct {
	counts    int
	magnified []model.Point
}

func (f *fakeCounter) Count()               { f.counts++ }
func (f *fakeCounter) Magnify(p model.Point) { f.magnified = append(f.magnified, p) }

func TestNewStartsAtRoot(t *testing.T) {
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	c := New(bbox, true, nil)

	assert.Equal(t, bbox, c.BBox())
	assert.Equal(t, uint64(0), c.Depth())
	assert.True(t, c.Id().Equal(model.RootId()))
}

func TestMagnifyDescendsOneLevel(t *testing.T) {
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	c := New(bbox, true, nil)

	c.Magnify(model.Point{X: 7, Y: 7, Z: 7})

	assert.Equal(t, uint64(1), c.Depth())
	assert.Equal(t, model.NewBBox3d(4, 4, 4, 8, 8, 8), c.BBox())
	assert.True(t, c.Id().Equal(model.Climb(model.RootId(), model.Dir(7))))
}

func TestMagnifyMultipleStepsNarrowsConsistently(t *testing.T) {
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	c := New(bbox, true, nil)
	target := model.Point{X: 1, Y: 1, Z: 1}

	c.Magnify(target)
	c.Magnify(target)
	c.Magnify(target)

	assert.Equal(t, uint64(3), c.Depth())
	assert.True(t, c.BBox().Contains(target))
	width := c.BBox().Max.X - c.BBox().Min.X
	assert.InDelta(t, 1, width, 1e-9)
}

func TestMagnifyMirrorsIntoCounter(t *testing.T) {
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	counter := &fakeCounter{}
	c := New(bbox, true, counter)

	p := model.Point{X: 1, Y: 2, Z: 3}
	c.Magnify(p)

	assert.Equal(t, []model.Point{p}, counter.magnified)
}

func TestMagnifyWithNilCounterDoesNotPanic(t *testing.T) {
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	c := New(bbox, true, nil)
	assert.NotPanics(t, func() { c.Magnify(model.Point{X: 1, Y: 1, Z: 1}) })
}

func TestCountBumpsCounter(t *testing.T) {
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	counter := &fakeCounter{}
	c := New(bbox, true, counter)

	c.Count()
	c.Count()

	assert.Equal(t, 2, counter.counts)
}

func TestCountWithNilCounterDoesNotPanic(t *testing.T) {
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	c := New(bbox, true, nil)
	assert.NotPanics(t, c.Count)
}

func TestMagnify2dIgnoresZAxis(t *testing.T) {
	bbox := model.NewBBox2d(0, 0, 8, 8)
	c := New(bbox, false, nil)

	c.Magnify(model.Point{X: 7, Y: 7, Z: 1000})

	assert.Equal(t, model.NewBBox2d(4, 4, 8, 8), c.BBox())
}
