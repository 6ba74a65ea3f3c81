package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoleClaimEncodings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "single", raw: "moderator", want: []string{"MODERATOR"}},
		{name: "comma joined", raw: "USER, Admin", want: []string{"USER", "ADMIN"}},
		{name: "bracketed", raw: `["ADMIN","MODERATOR"]`, want: []string{"ADMIN", "MODERATOR"}},
		{name: "single quoted", raw: `['admin', 'user']`, want: []string{"ADMIN", "USER"}},
		{name: "empty pieces", raw: ",, ,", want: nil},
		{name: "blank", raw: "   ", want: nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, ParseRoleClaim(test.raw))
		})
	}
}

func TestEncodingsNormalizeToSameSet(t *testing.T) {
	plain := NormalizeRoles("ADMIN", "moderator")
	joined := NormalizeRoles("Admin,MODERATOR")
	array := NormalizeRoles(`["admin","Moderator"]`)
	assert.Equal(t, plain, joined)
	assert.Equal(t, plain, array)
}

func TestIsModerator(t *testing.T) {
	assert.True(t, NormalizeRoles("admin").IsModerator())
	assert.True(t, NormalizeRoles("USER,moderator").IsModerator())
	assert.False(t, NormalizeRoles("USER").IsModerator())
	assert.False(t, NormalizeRoles().IsModerator())
	assert.False(t, NormalizeRoles("ADMINISTRATOR").IsModerator())
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier("test-secret", "identity-service", "payboard")
	require.NoError(t, err)
	return v
}

func TestIssueAndVerify(t *testing.T) {
	v := newTestVerifier(t)
	user := uuid.New()
	token, err := v.Issue(user, []string{"MODERATOR"}, time.Hour)
	require.NoError(t, err)

	ident, err := v.Verify(token)
	require.NoError(t, err)
	id, ok := ident.User()
	require.True(t, ok)
	assert.Equal(t, user, id)
	assert.True(t, ident.IsModerator())
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyRejects(t *testing.T) {
	v := newTestVerifier(t)
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": uuid.NewString(),
			"iss": "identity-service",
			"aud": "payboard",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}
	tests := []struct {
		name   string
		secret string
		mutate func(jwt.MapClaims)
	}{
		{name: "wrong secret", secret: "other", mutate: func(jwt.MapClaims) {}},
		{name: "wrong issuer", secret: "test-secret", mutate: func(c jwt.MapClaims) { c["iss"] = "evil" }},
		{name: "wrong audience", secret: "test-secret", mutate: func(c jwt.MapClaims) { c["aud"] = "other-app" }},
		{name: "expired", secret: "test-secret", mutate: func(c jwt.MapClaims) {
			c["exp"] = time.Now().Add(-time.Minute).Unix()
		}},
		{name: "no expiry", secret: "test-secret", mutate: func(c jwt.MapClaims) { delete(c, "exp") }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			claims := valid()
			test.mutate(claims)
			_, err := v.Verify(sign(t, test.secret, claims))
			assert.Error(t, err)
		})
	}
}

func TestVerifyToleratesClockSkew(t *testing.T) {
	v := newTestVerifier(t)
	token := sign(t, "test-secret", jwt.MapClaims{
		"sub": uuid.NewString(),
		"iss": "identity-service",
		"aud": "payboard",
		"exp": time.Now().Add(-10 * time.Second).Unix(),
	})
	_, err := v.Verify(token)
	assert.NoError(t, err)
}

func TestIdentityFromClaims(t *testing.T) {
	user := uuid.New()
	ident := identityFromClaims(jwt.MapClaims{
		claimNameIdentifier: user.String(),
		claimRoleURI:        []any{"User", "Moderator"},
	})
	id, ok := ident.User()
	require.True(t, ok)
	assert.Equal(t, user, id)
	assert.True(t, ident.Roles.Has("MODERATOR"))
	assert.True(t, ident.Roles.Has("user"))

	noUser := identityFromClaims(jwt.MapClaims{"sub": "not-a-uuid", "roles": `["ADMIN"]`})
	_, ok = noUser.User()
	assert.False(t, ok)
	assert.True(t, noUser.IsModerator())
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier("", "", "")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)

	_, ok = BearerToken("Basic dXNlcjpwYXNz")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}
