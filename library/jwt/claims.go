package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims identifies the caller behind a bearer token.
// The subject is the user profile id.
type UserClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}
