package tokens

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of the access token issued by the BaaS auth
// provider. The numeric user id and application role are custom claims set
// by the platform's token hook.
type AccessClaims struct {
	UserID  int64  `json:"user_id,omitempty"`
	AppRole string `json:"user_role,omitempty"`
	jwt.RegisteredClaims
}

var ErrNoUser = errors.New("token has no user id")

func AccessClaimsFromToken(tokenStr string, accessSecret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return accessSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &claims, nil
}

// ResolveUserID prefers the user_id claim and falls back to a numeric subject.
func (c *AccessClaims) ResolveUserID() (int64, error) {
	if c.UserID > 0 {
		return c.UserID, nil
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrNoUser
	}
	return id, nil
}

// Sign is used by tests and local tooling; production tokens come from the BaaS.
func Sign(claims AccessClaims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
