// Package jwt signs and parses HS256 bearer tokens.
package jwt

import (
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and verifies tokens with one shared secret.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// New constructs a Codec. The secret must not be empty.
func New(secret []byte, issuer string) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &Codec{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Sign issues a token for the user, valid for ttl.
func (c *Codec) Sign(userID, username, role string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	now := c.now()
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: username,
		Role:     role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return token, nil
}

// Parse verifies the token signature and expiry and returns its claims.
func (c *Codec) Parse(token string) (*UserClaims, error) {
	claims := &UserClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...); err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return claims, nil
}
