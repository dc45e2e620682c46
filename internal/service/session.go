package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vendhub/vendhub/internal/model"
	"github.com/vendhub/vendhub/internal/store"
)

var (
	// ErrInvalidCredentials is returned for a bad email/password pair or a
	// bad session token; callers must not learn which half failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when the operator account is inactive.
	ErrAccountDisabled = errors.New("account disabled")
)

// SessionPrincipal identifies the operator behind a validated session token.
type SessionPrincipal struct {
	OperatorID string
	Email      string
	IsAdmin    bool
}

// SessionService authenticates operators and manages their JWT session
// tokens.
type SessionService struct {
	store     *store.Store
	jwtSecret []byte
	ttl       time.Duration
}

// NewSessionService creates a SessionService issuing tokens valid for ttl.
func NewSessionService(st *store.Store, jwtSecret string, ttl time.Duration) *SessionService {
	return &SessionService{store: st, jwtSecret: []byte(jwtSecret), ttl: ttl}
}

// TTL returns the configured session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Login verifies the operator's password and returns the account with a
// signed session token.
func (s *SessionService) Login(ctx context.Context, email, password string) (*model.Operator, string, error) {
	op, err := s.store.GetOperatorByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !op.IsActive {
		return nil, "", ErrAccountDisabled
	}

	token, err := s.issue(op)
	if err != nil {
		return nil, "", err
	}
	// Best effort; a failed timestamp write must not fail the login.
	_ = s.store.UpdateOperatorLastLogin(ctx, op.ID)
	return op, token, nil
}

type sessionClaims struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

func (s *SessionService) issue(op *model.Operator) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email:   op.Email,
		IsAdmin: op.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    "vendhub",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// Validate verifies a session token and returns the operator identity.
func (s *SessionService) Validate(tokenStr string) (*SessionPrincipal, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}
	return &SessionPrincipal{
		OperatorID: claims.Subject,
		Email:      claims.Email,
		IsAdmin:    claims.IsAdmin,
	}, nil
}

// HashPassword returns the bcrypt hash stored for operator passwords.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
