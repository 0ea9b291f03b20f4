package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// HandleHealth handles health check requests
func (s *Server) HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := s.Engine.Health(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		status := http.StatusOK
		if report.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

// HandleAvatarObject serves avatars kept by the in-memory object store.
func (s *Server) HandleAvatarObject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		body, ok := s.Objects.Object(path)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", http.DetectContentType(body))
		w.Write(body)
	}
}
