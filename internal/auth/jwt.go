// Package auth implements the daemon's JWT-based access tokens, secret
// generation, and password hashing primitives.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jg-phare/mcslauncherd/internal/permission"
)

const issuerAudience = "MCServerLauncher.Daemon"

// ErrInvalidToken is returned for any token that fails signature, claim, or
// algorithm validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the daemon's JWT payload.
type Claims struct {
	jwt.RegisteredClaims
	Perms []string `json:"perms"`
}

// Issuer mints and verifies tokens signed with a single HMAC secret.
type Issuer struct {
	secret []byte
}

// NewIssuer creates an Issuer using secret as the HMAC-SHA256 key.
func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret}
}

// Encode mints a token granting perms, expiring at exp.
func (i *Issuer) Encode(perms permission.Set, exp time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerAudience,
			Audience:  jwt.ClaimStrings{issuerAudience},
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Perms: perms.Strings(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Decode verifies signature, issuer, audience, and expiry (zero leeway), and
// rejects any algorithm other than HS256 to prevent algorithm-substitution
// attacks.
func (i *Issuer) Decode(tokenString string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuerAudience),
		jwt.WithAudience(issuerAudience),
		jwt.WithLeeway(0),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// PermissionSet builds a permission.Set from the decoded claims.
func (c Claims) PermissionSet() (permission.Set, error) {
	return permission.NewSet(c.Perms)
}
