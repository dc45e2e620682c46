package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/server/middleware"
	"github.com/vendhub/vendhub/internal/service"
)

// TokenHandler exposes the API token management surface. Every endpoint
// requires an operator session; ownership checks happen in the service.
type TokenHandler struct {
	tokens *service.TokenService
}

// NewTokenHandler creates a new TokenHandler.
func NewTokenHandler(tokens *service.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

// tokenResponse wraps a created or regenerated token together with its
// plaintext secret. This is the only place the secret ever leaves the server.
type tokenResponse struct {
	Token  *model.APIToken `json:"token"`
	Secret string          `json:"secret,omitempty"`
}

// Create issues a new API token and returns the plaintext secret once.
// POST /api/v1/system/token
func (h *TokenHandler) Create(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	var req service.CreateTokenRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	t, secret, err := h.tokens.Create(r.Context(), &req, p.OperatorID, remoteIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{Token: t, Secret: secret})
}

// List returns the caller's tokens, or all tokens for admins. Supports
// name, owner, active, scope, and time-window filters plus paging.
// GET /api/v1/system/token
func (h *TokenHandler) List(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	f := model.TokenFilter{
		NameContains: queryString(r, "name"),
		CreatedBy:    queryString(r, "created_by"),
		Active:       queryBoolPtr(r, "active"),
		Scope:        queryString(r, "scope"),
		Limit:        clampInt(queryInt(r, "limit", 50), 1, 500),
		Offset:       clampInt(queryInt(r, "offset", 0), 0, 1<<30),
	}
	for key, dst := range map[string]**time.Time{
		"expires_after": &f.ExpiresAfter,
		"expires_until": &f.ExpiresUntil,
		"used_after":    &f.UsedAfter,
		"used_until":    &f.UsedUntil,
	} {
		if v := queryString(r, key); v != "" {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				*dst = &ts
			}
		}
	}

	tokens, total, err := h.tokens.List(r.Context(), f, p.OperatorID, p.IsAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: tokens,
		Meta: &model.ResponseMeta{
			Count:  len(tokens),
			Total:  total,
			Limit:  f.Limit,
			Offset: f.Offset,
		},
	})
}

// Get returns a single token by id.
// GET /api/v1/system/token/{tokenId}
func (h *TokenHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	t, err := h.tokens.Get(r.Context(), chi.URLParam(r, "tokenId"), p.OperatorID, p.IsAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Update applies a partial update to a token's configuration.
// PATCH /api/v1/system/token/{tokenId}
func (h *TokenHandler) Update(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	var patch model.TokenPatch
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	t, err := h.tokens.Update(r.Context(), chi.URLParam(r, "tokenId"), patch, p.OperatorID, remoteIP(r), p.IsAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Revoke deactivates a token without deleting its record.
// POST /api/v1/system/token/{tokenId}/revoke
func (h *TokenHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	if err := h.tokens.Revoke(r.Context(), chi.URLParam(r, "tokenId"), p.OperatorID, remoteIP(r), p.IsAdmin); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Regenerate replaces a token with a fresh secret under the same
// configuration, returning the new plaintext secret once.
// POST /api/v1/system/token/{tokenId}/regenerate
func (h *TokenHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	t, secret, err := h.tokens.Regenerate(r.Context(), chi.URLParam(r, "tokenId"), p.OperatorID, remoteIP(r), p.IsAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{Token: t, Secret: secret})
}

// Delete removes a token permanently.
// DELETE /api/v1/system/token/{tokenId}
func (h *TokenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	if err := h.tokens.Delete(r.Context(), chi.URLParam(r, "tokenId"), p.OperatorID, remoteIP(r), p.IsAdmin); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Stats returns aggregate token counts and usage leaders, scoped to the
// caller unless they are an admin.
// GET /api/v1/system/token/stats
func (h *TokenHandler) Stats(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())

	stats, err := h.tokens.Stats(r.Context(), p.OperatorID, p.IsAdmin)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Presets returns the named permission preset map.
// GET /api/v1/system/token/presets
func (h *TokenHandler) Presets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Presets)
}
