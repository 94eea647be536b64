package api

import (
	"net/http"

	"github.com/koopa0/widgetd/internal/log"
)

// health is a liveness probe for Docker/Kubernetes.
func health(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	}
}

// ready is a readiness probe reporting the compiled widget count and
// the number of live sessions.
func (s *Server) ready(logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"widgets":  len(s.widgets),
			"sessions": s.sessions.Len(),
		}, logger)
	}
}
