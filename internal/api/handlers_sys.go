package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/org/credvault/internal/storage"
)

// HealthHandler handles GET /v1/sys/health.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	healthy := true
	if err := s.store.Ping(r.Context()); err != nil {
		code = http.StatusServiceUnavailable
		healthy = false
	}
	writeJSON(w, code, map[string]any{
		"healthy": healthy,
		"version": "1.0.0",
	})
}

// AuditLogHandler handles GET /v1/sys/audit-log. Owners see their own
// entries only.
func (s *Server) AuditLogHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromCtx(r.Context())

	q := r.URL.Query()
	filter := storage.AuditFilter{
		OwnerID:  owner,
		Provider: q.Get("provider"),
		Event:    q.Get("event"),
		Limit:    100,
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			filter.Limit = n
		}
	}
	if o := q.Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil {
			filter.Offset = n
		}
	}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		}
	}

	entries, err := s.auditor.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}
