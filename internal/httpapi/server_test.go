package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entwine-go/entwine/internal/hierarchy"
	"github.com/entwine-go/entwine/internal/metrics"
	"github.com/entwine-go/entwine/internal/model"
)

func testHierarchy(t *testing.T) *hierarchy.Hierarchy {
	t.Helper()
	bbox := model.NewBBox3d(0, 0, 0, 8, 8, 8)
	h := hierarchy.New(bbox, hierarchy.NewNodePool(), nil, "")
	h.SetDepthBegin(0)
	c := hierarchy.NewClimber(h, true)
	c.Magnify(model.Point{X: 1, Y: 1, Z: 1})
	c.Count()
	return h
}

func TestHealthzReportsOk(t *testing.T) {
	s := New(testHierarchy(t), metrics.NewCollectors())
	srv := httptest.NewServer(s.Handler(io.Discard))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsRouteServesPrometheusText(t *testing.T) {
	collectors := metrics.NewCollectors()
	collectors.PointsInserted.Inc()
	s := New(testHierarchy(t), collectors)
	srv := httptest.NewServer(s.Handler(io.Discard))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "entwine_points_inserted_total 1")
}

func TestHierarchyQueryReturnsAggregatedCount(t *testing.T) {
	s := New(testHierarchy(t), metrics.NewCollectors())
	srv := httptest.NewServer(s.Handler(io.Discard))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/hierarchy/query?minx=0&miny=0&minz=0&maxx=8&maxy=8&maxz=8&depthBegin=0&depthEnd=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []hierarchy.Count
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.EqualValues(t, 1, results[0].Count)
}

func TestHierarchyQueryRejectsMissingBBox(t *testing.T) {
	s := New(testHierarchy(t), metrics.NewCollectors())
	srv := httptest.NewServer(s.Handler(io.Discard))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/hierarchy/query?minx=0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHierarchyQueryBeforeHierarchyAvailable(t *testing.T) {
	s := New(nil, metrics.NewCollectors())
	srv := httptest.NewServer(s.Handler(io.Discard))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/hierarchy/query?minx=0&miny=0&minz=0&maxx=1&maxy=1&maxz=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	s.SetHierarchy(testHierarchy(t))
	resp2, err := http.Get(srv.URL + "/hierarchy/query?minx=0&miny=0&minz=0&maxx=8&maxy=8&maxz=8&depthBegin=0&depthEnd=5")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
