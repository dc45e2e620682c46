package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/service"
	"github.com/vendhub/vendhub/internal/store"
)

// SystemHandler manages operator accounts and their sessions.
type SystemHandler struct {
	store    *store.Store
	sessions *service.SessionService
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(st *store.Store, sessions *service.SessionService) *SystemHandler {
	return &SystemHandler{store: st, sessions: sessions}
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response payload for a successful login.
type loginResponse struct {
	Token      string `json:"session_token"`
	TokenType  string `json:"token_type"`
	ExpiresIn  int    `json:"expires_in"`
	OperatorID string `json:"operator_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	IsAdmin    bool   `json:"is_admin"`
}

// Login authenticates an operator and returns a JWT session token.
// POST /api/v1/system/session
func (h *SystemHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	op, token, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, service.ErrAccountDisabled):
			writeError(w, http.StatusUnauthorized, "Account is disabled")
		default:
			writeError(w, http.StatusInternalServerError, "Authentication error: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:      token,
		TokenType:  "bearer",
		ExpiresIn:  int(h.sessions.TTL().Seconds()),
		OperatorID: op.ID,
		Email:      op.Email,
		Name:       op.Name,
		IsAdmin:    op.IsAdmin,
	})
}

// Logout invalidates the current session. Since JWTs are stateless, this is
// a no-op on the server side. Clients should discard their token.
// DELETE /api/v1/system/session
func (h *SystemHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}

// ---------------------------------------------------------------------------
// Operator management
// ---------------------------------------------------------------------------

// createOperatorRequest is the expected payload for CreateOperator.
type createOperatorRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"is_admin"`
}

// ListOperators returns all operator accounts.
// GET /api/v1/system/operator
func (h *SystemHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := h.store.ListOperators(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list operators: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: ops,
		Meta:     &model.ResponseMeta{Count: len(ops)},
	})
}

// CreateOperator registers a new operator account.
// POST /api/v1/system/operator
func (h *SystemHandler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	hash, err := service.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password: "+err.Error())
		return
	}

	op := &model.Operator{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		IsActive:     true,
		IsAdmin:      req.IsAdmin,
	}
	if err := h.store.CreateOperator(r.Context(), op); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Operator already exists: "+req.Email)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create operator: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, op)
}
