package handler

import (
	"net/http"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/store"
)

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	store *store.Store
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(st *store.Store) *AuditHandler {
	return &AuditHandler{store: st}
}

// List returns audit events, newest first, with optional action, token, and
// outcome filters.
// GET /api/v1/system/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	f := model.AuditFilter{
		Action:  queryString(r, "action"),
		TokenID: queryString(r, "token_id"),
		Outcome: queryString(r, "outcome"),
		Limit:   clampInt(queryInt(r, "limit", 50), 1, 500),
		Offset:  clampInt(queryInt(r, "offset", 0), 0, 1<<30),
	}

	events, total, err := h.store.ListAuditEvents(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit events: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: events,
		Meta: &model.ResponseMeta{
			Count:  len(events),
			Total:  total,
			Limit:  f.Limit,
			Offset: f.Offset,
		},
	})
}
