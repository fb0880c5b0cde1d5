package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/entwine-go/entwine/internal/hierarchy"
	"github.com/entwine-go/entwine/internal/model"
)

// parseBBox reads the required region (minx/miny/minz/maxx/maxy/maxz) from
// the query string. The depth range (depthBegin, inclusive; depthEnd,
// exclusive, as in hierarchy.Hierarchy.Query) is optional:
// handleHierarchyQuery defaults depthBegin to 0 and depthEnd to the
// hierarchy's DepthBegin().
func parseBBox(q map[string][]string) (model.BBox, bool) {
	get := func(key string) (float64, bool) {
		vals, ok := q[key]
		if !ok || len(vals) == 0 {
			return 0, false
		}
		v, err := strconv.ParseFloat(vals[0], 64)
		return v, err == nil
	}

	minX, ok1 := get("minx")
	minY, ok2 := get("miny")
	minZ, ok3 := get("minz")
	maxX, ok4 := get("maxx")
	maxY, ok5 := get("maxy")
	maxZ, ok6 := get("maxz")
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return model.BBox{}, false
	}
	return model.NewBBox3d(minX, minY, minZ, maxX, maxY, maxZ), true
}

func parseUint(q map[string][]string, key string, fallback uint64) (uint64, bool) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return fallback, true
	}
	v, err := strconv.ParseUint(vals[0], 10, 64)
	return v, err == nil
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleHierarchyQuery answers GET /hierarchy/query?minx=...&miny=...&
// minz=...&maxx=...&maxy=...&maxz=...&depthBegin=...&depthEnd=... by
// running Hierarchy.Query and returning its []hierarchy.Count as JSON.
func (s *Server) handleHierarchyQuery(w http.ResponseWriter, r *http.Request) {
	if s.h == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "hierarchy not yet available")
		return
	}

	q := r.URL.Query()
	qbox, ok := parseBBox(q)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "minx/miny/minz/maxx/maxy/maxz are required and must be numeric")
		return
	}
	depthBegin, ok := parseUint(q, "depthBegin", 0)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "depthBegin must be a non-negative integer")
		return
	}
	depthEnd, ok := parseUint(q, "depthEnd", s.h.DepthBegin())
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "depthEnd must be a non-negative integer")
		return
	}

	results, err := s.h.Query(r.Context(), qbox, depthBegin, depthEnd)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		results = []hierarchy.Count{}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(results)
}
