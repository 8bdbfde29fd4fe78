// auth.go - Bearer-token authentication middleware and the principal model.
//
// Token issuance and credential storage live in the external identity
// service; this layer only verifies the HMAC-signed bearer token and puts
// the principal on the request context.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the closed set of principal kinds. Authorization checkpoints
// switch over it exhaustively instead of comparing raw strings.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleUploader Role = "user"
)

// ParseRole validates a role claim from the token.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOwner:
		return RoleOwner, nil
	case RoleUploader:
		return RoleUploader, nil
	default:
		return "", errors.New("invalid role")
	}
}

// Principal is the authenticated caller: canonical id, role and the phone
// number captured at registration (uploader tokens only; used for the
// masked sender field in listings).
type Principal struct {
	ID    string
	Role  Role
	Phone string
}

const principalKey ctxKey = "principal"

// PrincipalFromContext returns the authenticated principal, or false when
// the request skipped the auth middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

type principalClaims struct {
	Role  string `json:"role"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig verifies bearer tokens issued by the identity service.
type AuthConfig struct {
	JWTSecret string
}

func (a AuthConfig) parseToken(raw string) (Principal, error) {
	claims := &principalClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil || !tok.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("missing subject")
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Principal{}, err
	}
	return Principal{ID: claims.Subject, Role: role, Phone: claims.Phone}, nil
}

// requireAuth rejects requests without a valid bearer token and injects the
// principal into the context for downstream handlers.
func (a AuthConfig) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		p, err := a.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
