package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-secret"

func signToken(t *testing.T, mutate func(b *jwt.Builder)) string {
	t.Helper()
	now := time.Now()
	builder := jwt.NewBuilder().
		Subject("user-1").
		Issuer("towdesk").
		IssuedAt(now).
		Expiration(now.Add(15 * time.Minute)).
		Claim("name", "Dana Ops").
		Claim("role", "admin")
	if mutate != nil {
		mutate(builder)
	}
	tok, err := builder.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Secret: testSecret, Issuer: "towdesk"})
	require.NoError(t, err)
	return svc
}

func TestParseAccessTokenClaims(t *testing.T) {
	svc := newTestService(t)
	claims, err := svc.ParseAccessToken(signToken(t, nil))
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "Dana Ops", claims.Name)
	require.Equal(t, "admin", claims.Role)
}

func TestParseAccessTokenNormalisesRoleCase(t *testing.T) {
	svc := newTestService(t)
	claims, err := svc.ParseAccessToken(signToken(t, func(b *jwt.Builder) {
		b.Claim("role", " Admin ")
	}))
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Role)
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	svc, err := NewService(Config{Secret: "a-completely-different-secret", Issuer: "towdesk"})
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(signToken(t, nil))
	require.Error(t, err)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	svc := newTestService(t)
	token := signToken(t, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-time.Hour))
	})
	_, err := svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	svc := newTestService(t)
	token := signToken(t, func(b *jwt.Builder) {
		b.Issuer("someone-else")
	})
	_, err := svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsMissingSubject(t *testing.T) {
	svc := newTestService(t)
	token := signToken(t, func(b *jwt.Builder) {
		b.Subject("")
	})
	_, err := svc.ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsEmpty(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.ParseAccessToken("   ")
	require.Error(t, err)
}
