package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("owner")
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, r)

	r, err = ParseRole("user")
	require.NoError(t, err)
	assert.Equal(t, RoleUploader, r)

	for _, bad := range []string{"", "admin", "Owner", "uploader"} {
		_, err := ParseRole(bad)
		assert.Error(t, err, "role %q must be rejected", bad)
	}
}

func TestParseToken(t *testing.T) {
	a := AuthConfig{JWTSecret: testSecret}

	tok := mintToken(t, "uploader-1", RoleUploader, "+15551234567")
	p, err := a.parseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "uploader-1", p.ID)
	assert.Equal(t, RoleUploader, p.Role)
	assert.Equal(t, "+15551234567", p.Phone)

	_, err = a.parseToken("garbage")
	assert.Error(t, err)

	// Wrong key.
	other := AuthConfig{JWTSecret: "other-secret"}
	_, err = other.parseToken(tok)
	assert.Error(t, err)
}

func TestParseTokenRejectsBadClaims(t *testing.T) {
	a := AuthConfig{JWTSecret: testSecret}

	sign := func(claims principalClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return s
	}

	// Missing subject.
	_, err := a.parseToken(sign(principalClaims{Role: "owner"}))
	assert.Error(t, err)

	// Unknown role.
	_, err = a.parseToken(sign(principalClaims{
		Role:             "superuser",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "x"},
	}))
	assert.Error(t, err)

	// Expired.
	_, err = a.parseToken(sign(principalClaims{
		Role: "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}))
	assert.Error(t, err)
}

func TestRequireAuthMiddleware(t *testing.T) {
	a := AuthConfig{JWTSecret: testSecret}

	var got Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		got = p
		w.WriteHeader(http.StatusNoContent)
	})
	handler := a.requireAuth(next)

	// No header.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Wrong scheme.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("user", "pass")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Valid token reaches the handler with the principal set.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "owner-1", RoleOwner, ""))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, Principal{ID: "owner-1", Role: RoleOwner}, got)
}
