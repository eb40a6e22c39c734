package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1_760_000_000, 0)

func signClaims(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestIsExpired_failClosed(t *testing.T) {
	noExp := signClaims(t, jwt.MapClaims{"sub": "user-1"})
	garbagePayload := "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".sig"
	stringExp := signClaims(t, jwt.MapClaims{"exp": "tomorrow"})

	cases := map[string]string{
		"empty":            "",
		"one segment":      "abc",
		"two segments":     "abc.def",
		"four segments":    "a.b.c.d",
		"bad base64":       "!!!.@@@.###",
		"payload not json": garbagePayload,
		"missing exp":      noExp,
		"non-numeric exp":  stringExp,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, IsExpired(tok, testNow))
		})
	}
}

func TestIsExpired_rejectsUnusableHeaderOrPadding(t *testing.T) {
	enc := base64.RawURLEncoding.EncodeToString
	payload := enc([]byte(`{"exp":9999999999}`))
	paddedPayload := base64.URLEncoding.EncodeToString([]byte(`{"exp": 9999999999}`))
	require.Contains(t, paddedPayload, "=")

	cases := map[string]string{
		"no header":      "." + payload + ".sig",
		"no alg":         enc([]byte(`{"typ":"JWT"}`)) + "." + payload + ".sig",
		"unknown alg":    enc([]byte(`{"alg":"XX999"}`)) + "." + payload + ".sig",
		"padded payload": enc([]byte(`{"alg":"HS256"}`)) + "." + paddedPayload + ".sig",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, IsExpired(tok, testNow))
		})
	}

	valid := enc([]byte(`{"alg":"HS256"}`)) + "." + payload + ".sig"
	assert.False(t, IsExpired(valid, testNow))
}

func TestIsExpired_boundary(t *testing.T) {
	past := signClaims(t, jwt.MapClaims{"exp": testNow.Unix() - 1})
	now := signClaims(t, jwt.MapClaims{"exp": testNow.Unix()})
	future := signClaims(t, jwt.MapClaims{"exp": testNow.Unix() + 3600})

	assert.True(t, IsExpired(past, testNow), "exp = now-1 is expired")
	assert.True(t, IsExpired(now, testNow), "exp must be strictly after now")
	assert.False(t, IsExpired(future, testNow), "exp = now+3600 is valid")
}

func TestIsExpired_ignoresSignature(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": testNow.Add(time.Hour).Unix(),
	}).SignedString([]byte("a-key-this-service-never-sees"))
	require.NoError(t, err)

	assert.False(t, IsExpired(tok, testNow))
}

func TestParseClaims(t *testing.T) {
	tok := signClaims(t, jwt.MapClaims{
		"exp":       testNow.Add(time.Hour).Unix(),
		"email":     "agent@example.com",
		"role":      "Admin",
		"user_type": "business",
	})

	claims, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", claims.Email)
	assert.Equal(t, "Admin", claims.Role)
	assert.Equal(t, "business", claims.UserType)

	exp, ok := ExpiresAt(tok)
	require.True(t, ok)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), exp.Unix())

	_, err = ParseClaims("abc.def")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestJWTService_SignToken(t *testing.T) {
	svc := NewJWTService("dev-secret", time.Hour)
	svc.now = func() time.Time { return testNow }

	tok, err := svc.SignToken("dev@example.com", "super_admin")
	require.NoError(t, err)

	claims, err := ParseClaims(tok)
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", claims.Email)
	assert.Equal(t, "super_admin", claims.Role)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.False(t, IsExpired(tok, testNow))
	assert.True(t, IsExpired(tok, testNow.Add(time.Hour)))
}
