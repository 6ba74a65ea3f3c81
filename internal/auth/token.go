package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claim names that may carry the user id or roles. The long forms are what
// .NET identity issuers emit.
const (
	claimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimRoleURI        = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

var userIDClaims = []string{"id", "sub", "nameid", claimNameIdentifier}

// DefaultLeeway is the clock skew tolerated on expiry and not-before checks.
const DefaultLeeway = 30 * time.Second

var ErrMissingSecret = errors.New("jwt secret must not be empty")

// Identity is what a verified bearer token says about the caller.
type Identity struct {
	UserID uuid.UUID
	Roles  RoleSet
}

// User returns the caller's id and whether one could be resolved from the token.
func (i *Identity) User() (uuid.UUID, bool) {
	if i == nil || i.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return i.UserID, true
}

func (i *Identity) IsModerator() bool {
	return i != nil && i.Roles.IsModerator()
}

// Verifier validates HS256 bearer tokens issued by the identity service.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

func NewVerifier(secret, issuer, audience string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		leeway:   DefaultLeeway,
		now:      time.Now,
	}, nil
}

// Verify checks signature, issuer, audience and expiry and extracts the identity.
// A valid token without a usable user id still verifies; callers decide
// whether they need the id.
func (v *Verifier) Verify(raw string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return identityFromClaims(claims), nil
}

func identityFromClaims(claims jwt.MapClaims) *Identity {
	ident := &Identity{Roles: RoleSet{}}
	for _, name := range userIDClaims {
		value, ok := claims[name].(string)
		if !ok {
			continue
		}
		if id, err := uuid.Parse(strings.TrimSpace(value)); err == nil {
			ident.UserID = id
			break
		}
	}
	var raw []string
	for name, value := range claims {
		lower := strings.ToLower(name)
		if lower == "role" || lower == "roles" || lower == claimRoleURI || strings.HasSuffix(lower, "/role") {
			raw = append(raw, rolesFromClaim(value)...)
		}
	}
	ident.Roles = NormalizeRoles(raw...)
	return ident
}

// Issue signs a token for userID with the verifier's issuer and audience.
// It backs the CLI token command and tests.
func (v *Verifier) Issue(userID uuid.UUID, roles []string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"id":  userID.String(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	if v.audience != "" {
		claims["aud"] = v.audience
	}
	if len(roles) > 0 {
		claims["role"] = strings.Join(roles, ",")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
