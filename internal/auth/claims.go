package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sdeskhq/support-desk/internal/model"
)

// Claims is the payload of an access token. The subject carries the
// user id as a decimal string; role id, role name and the admin flag
// ride alongside so request-path permission checks need no role
// lookup. Tokens are self-contained and never persisted.
type Claims struct {
	Username string `json:"username"`
	RoleID   uint64 `json:"role_id"`
	RoleName string `json:"role"`
	Admin    bool   `json:"admin"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a numeric user id.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// newClaims builds the claim set for a user at the given instant. A
// nil role yields no role name and no admin flag (fail closed).
func newClaims(user *model.User, role *model.Role, ttl time.Duration, now time.Time) Claims {
	c := Claims{
		Username: user.Username,
		RoleID:   user.RoleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if role != nil {
		c.RoleName = role.Name
		c.Admin = role.IsAdmin
	}
	return c
}

// signAccess serializes and signs claims with HS256.
func signAccess(secret string, claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

// parseAccess verifies signature and expiry and returns the claims.
// Any failure (wrong algorithm, bad signature, garbage input,
// expiry) comes back as ErrInvalidToken; callers cannot tell the
// cases apart.
func parseAccess(secret, raw string, now func() time.Time) (*Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(now))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
