package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/joao-fontenele/waterflow/internal/domain"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type Claims struct {
	CustomerID string `json:"customer_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type contextKey struct{}

func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(*Claims)
	return claims, ok && claims != nil
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKey{}, claims)
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Parse validates an Authorization header value of the form "Bearer <jwt>".
func (v *Verifier) Parse(header string) (*Claims, error) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if claims.CustomerID == "" {
		return nil, fmt.Errorf("%w: token has no customer", domain.ErrUnauthorized)
	}

	return claims, nil
}

func (v *Verifier) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := v.Parse(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, err.Error())
			return
		}
		next(w, r.WithContext(WithClaims(r.Context(), claims)))
	}
}

// RequireAdmin must run behind Middleware.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "unauthorized")
			return
		}
		if !claims.IsAdmin() {
			writeError(w, http.StatusForbidden, domain.CodeForbidden, "operator role required")
			return
		}
		next(w, r)
	}
}

// Issue signs a token for development tooling and tests; production tokens
// come from the auth service.
func Issue(secret, customerID, role string, ttl time.Duration) (string, error) {
	if customerID == "" {
		return "", errors.New("customer id is required")
	}
	now := time.Now()
	claims := Claims{
		CustomerID: customerID,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   customerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
