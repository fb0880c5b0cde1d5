// Package httpapi is the engine's read-only HTTP surface: metrics,
// liveness, and ad-hoc hierarchy queries against a running build. It
// never touches insertion; everything here is a view onto state other
// packages own.
package httpapi

import (
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/entwine-go/entwine/internal/hierarchy"
	"github.com/entwine-go/entwine/internal/metrics"
)

// Server wires the read-only routes atop a running Hierarchy and its
// Collectors. Grounded on cmd/cc-backend/server.go's router construction
// (a plain *mux.Router with handlers.* middleware layered on top), scaled
// down to the handful of routes this engine actually needs.
type Server struct {
	router     *mux.Router
	h          *hierarchy.Hierarchy
	collectors *metrics.Collectors
}

// New builds a Server. h may be nil before a build's tree exists yet, in
// which case /hierarchy/query answers 503 until SetHierarchy is called.
func New(h *hierarchy.Hierarchy, collectors *metrics.Collectors) *Server {
	s := &Server{router: mux.NewRouter(), h: h, collectors: collectors}

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", collectors.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/hierarchy/query", s.handleHierarchyQuery).Methods(http.MethodGet)

	return s
}

// SetHierarchy swaps the Hierarchy /hierarchy/query answers against,
// letting the HTTP server start before a build's tree is constructed.
func (s *Server) SetHierarchy(h *hierarchy.Hierarchy) {
	s.h = h
}

// Handler returns the fully wrapped router: gzip compression, panic
// recovery, and combined access logging, same layering order as
// cmd/cc-backend/server.go.
func (s *Server) Handler(accessLog io.Writer) http.Handler {
	var h http.Handler = s.router
	h = handlers.CompressHandler(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	h = handlers.CombinedLoggingHandler(accessLog, h)
	return h
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}
