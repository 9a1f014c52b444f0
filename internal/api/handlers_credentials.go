package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/org/credvault/internal/vault"
	"github.com/org/credvault/pkg/models"
)

// CredentialSaveHandler handles PUT /v1/credentials/{provider}.
// The plaintext crosses this boundary exactly once; every read path
// afterward returns the masked form only.
func (s *Server) CredentialSaveHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromCtx(r.Context())
	provider := chi.URLParam(r, "provider")

	var req struct {
		Secret string `json:"secret"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Secret == "" {
		writeError(w, http.StatusBadRequest, "secret is required")
		return
	}

	cred, err := s.vault.Save(r.Context(), provider, req.Secret, vault.Options{Owner: owner})
	if err != nil {
		writeVaultError(w, err)
		return
	}

	s.auditor.LogRequest(r.Context(), &models.AuditEntry{
		RequestID: requestIDFromCtx(r.Context()),
		Event:     models.EventCredentialSaved,
		OwnerID:   owner,
		Provider:  provider,
		Detail:    map[string]any{"masked_value": cred.MaskedDisplay},
	})
	s.refreshCredentialGauge(r)

	writeJSON(w, http.StatusOK, map[string]any{
		"provider":        cred.Provider,
		"masked_value":    cred.MaskedDisplay,
		"last_rotated_at": cred.LastRotatedAt,
	})
}

// CredentialListHandler handles GET /v1/credentials.
func (s *Server) CredentialListHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromCtx(r.Context())

	creds, err := s.vault.List(r.Context(), owner)
	if err != nil {
		writeVaultError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(creds))
	for _, c := range creds {
		out = append(out, map[string]any{
			"provider":        c.Provider,
			"masked_value":    c.MaskedDisplay,
			"created_at":      c.CreatedAt,
			"last_rotated_at": c.LastRotatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// CredentialDeleteHandler handles DELETE /v1/credentials/{provider}.
func (s *Server) CredentialDeleteHandler(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromCtx(r.Context())
	provider := chi.URLParam(r, "provider")

	if err := s.vault.Delete(r.Context(), provider, vault.Options{Owner: owner}); err != nil {
		writeVaultError(w, err)
		return
	}

	s.auditor.LogRequest(r.Context(), &models.AuditEntry{
		RequestID: requestIDFromCtx(r.Context()),
		Event:     models.EventCredentialDeleted,
		OwnerID:   owner,
		Provider:  provider,
	})
	s.refreshCredentialGauge(r)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) refreshCredentialGauge(r *http.Request) {
	if n, err := s.store.CountCredentials(r.Context()); err == nil {
		credentialsTotal.Set(float64(n))
	}
}
