package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/covenant-hq/covenant/internal/tenant"
)

// MembershipClaim carries one tenant membership inside the token so role
// checks do not need a DB round trip per request.
type MembershipClaim struct {
	TenantID int64       `json:"tenant_id"`
	Role     tenant.Role `json:"role"`
}

// Claims is the JWT payload issued at login.
type Claims struct {
	jwt.RegisteredClaims
	Email       string            `json:"email"`
	Memberships []MembershipClaim `json:"memberships"`
}

// UserID parses the subject back into the user id.
func (c Claims) UserID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// RoleFor returns the role carried for the tenant, if any.
func (c Claims) RoleFor(tenantID int64) (tenant.Role, bool) {
	for _, m := range c.Memberships {
		if m.TenantID == tenantID {
			return m.Role, true
		}
	}
	return "", false
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds a token issuer from the shared secret.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (i *TokenIssuer) WithNow(now func() time.Time) {
	if now != nil {
		i.now = now
	}
}

// Issue signs a token for the user with their tenant memberships embedded.
func (i *TokenIssuer) Issue(user User, memberships []tenant.Membership) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email:       user.Email,
		Memberships: make([]MembershipClaim, 0, len(memberships)),
	}
	for _, m := range memberships {
		claims.Memberships = append(claims.Memberships, MembershipClaim{TenantID: m.TenantID, Role: m.Role})
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse verifies the token signature and expiry and returns the claims.
func (i *TokenIssuer) Parse(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now() }))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
