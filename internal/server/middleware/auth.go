package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/vendhub/vendhub/internal/service"
)

type contextKeyAuth string

const (
	// AuthPrincipalKey is the context key for the authenticated principal.
	AuthPrincipalKey contextKeyAuth = "auth_principal"
)

// Principal represents the authenticated identity making the request.
type Principal struct {
	Type       string // "operator" or "api_token"
	OperatorID string
	TokenID    string
	TokenOwner string
	IsAdmin    bool
}

// Authenticate returns an HTTP middleware that validates the request's
// session token. Operators authenticate with a JWT Bearer token in the
// Authorization header. On success a Principal is attached to the request
// context; on failure a 401 JSON error response is returned.
func Authenticate(sessions *service.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide a Bearer session token.")
				return
			}

			p, err := sessions.Validate(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid session token")
				return
			}

			principal := &Principal{
				Type:       "operator",
				OperatorID: p.OperatorID,
				IsAdmin:    p.IsAdmin,
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize returns an HTTP middleware guarding data routes. It accepts
// either an operator session (Bearer token) or a programmatic API token in
// the tokenHeader header; the API token path runs through the authorization
// gate, which enforces the token's policy and the required permission.
func Authorize(sessions *service.SessionService, gate *service.Gate, tokenHeader, required, resourceScope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret := r.Header.Get(tokenHeader); secret != "" {
				d := gate.Authorize(r.Context(), secret, clientIP(r), required, resourceScope)
				if !d.Allowed() {
					status, msg := decisionError(d.Decision)
					writeAuthError(w, status, msg)
					return
				}
				principal := &Principal{
					Type:       "api_token",
					TokenID:    d.TokenID,
					TokenOwner: d.OwnerID,
				}
				ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				p, err := sessions.Validate(strings.TrimPrefix(authHeader, "Bearer "))
				if err != nil {
					writeAuthError(w, http.StatusUnauthorized, "Invalid session token")
					return
				}
				principal := &Principal{
					Type:       "operator",
					OperatorID: p.OperatorID,
					IsAdmin:    p.IsAdmin,
				}
				ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			writeAuthError(w, http.StatusUnauthorized,
				"Authentication required. Provide an API token header or Bearer token.")
		})
	}
}

// decisionError maps a gate decision to an HTTP status and client message.
// Policy refusals are distinguishable; credential failures are not.
func decisionError(d service.Decision) (int, string) {
	switch d {
	case service.DecisionForbidden:
		return http.StatusForbidden, "Token does not grant the required permission"
	case service.DecisionDisabled:
		return http.StatusForbidden, "Token is disabled"
	case service.DecisionExpired:
		return http.StatusForbidden, "Token is expired"
	case service.DecisionIPNotAllowed:
		return http.StatusForbidden, "Client address not allowed for this token"
	case service.DecisionRateLimited:
		return http.StatusTooManyRequests, "Token rate limit exceeded"
	default:
		return http.StatusUnauthorized, "Invalid API token"
	}
}

// clientIP returns the request's remote address without the port. RealIP
// middleware has already substituted forwarded addresses where trusted.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RequireAdmin returns an HTTP middleware that enforces admin-level access.
// It must be used after Authenticate in the middleware chain.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil || !principal.IsAdmin {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil if no principal is present (i.e., unauthenticated request).
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid import cycle with handler package
	w.Write([]byte(`{"error":{"code":` + httpStatusString(status) + `,"message":"` + message + `"}}`))
}

func httpStatusString(code int) string {
	switch code {
	case 401:
		return "401"
	case 403:
		return "403"
	case 429:
		return "429"
	default:
		return "500"
	}
}
