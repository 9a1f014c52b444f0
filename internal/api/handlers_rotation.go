package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RotateHandler handles POST /v1/credentials/{provider}/rotate.
func (s *Server) RotateHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromCtx(r.Context())
	provider := chi.URLParam(r, "provider")

	var req struct {
		NewSecret    string `json:"new_secret"`
		AutoGenerate bool   `json:"auto_generate"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.NewSecret == "" && !req.AutoGenerate {
		writeError(w, http.StatusBadRequest, "new_secret or auto_generate is required")
		return
	}

	res, err := s.rotator.Rotate(r.Context(), provider, owner, req.NewSecret, req.AutoGenerate)
	if err != nil {
		rotationsTotal.WithLabelValues("failed").Inc()
		writeVaultError(w, err)
		return
	}
	rotationsTotal.WithLabelValues("committed").Inc()

	resp := map[string]any{
		"success":          true,
		"masked_new_value": res.MaskedNewValue,
	}
	if res.GeneratedSecret != "" {
		// Shown exactly once; no read path can produce it again.
		resp["new_secret"] = res.GeneratedSecret
	}
	writeJSON(w, http.StatusOK, resp)
}

// RotationStatusHandler handles GET /v1/credentials/{provider}/rotation-status.
// The evaluation is advisory: a stale credential remains usable.
func (s *Server) RotationStatusHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromCtx(r.Context())
	provider := chi.URLParam(r, "provider")

	cred, err := s.vault.Get(r.Context(), provider, owner)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	status := s.policy.Evaluate(provider, cred.LastRotatedAt, time.Now().UTC())
	writeJSON(w, http.StatusOK, status)
}
