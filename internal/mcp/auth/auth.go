// Package auth resolves bearer tokens into caller identities and decides
// which stock operations a caller may invoke.
package auth

import (
	"context"
	"strings"

	errors "github.com/Laisky/errors/v2"

	"github.com/Laisky/docstock/internal/mcp/ctxkeys"
	"github.com/Laisky/docstock/internal/stock"
	"github.com/Laisky/docstock/library"
	"github.com/Laisky/docstock/library/jwt"
)

var (
	// ErrMissingAuthorization indicates that no authorization header was provided.
	ErrMissingAuthorization = errors.New("authorization header required")
	// ErrInvalidAuthorization indicates that the authorization header is malformed.
	ErrInvalidAuthorization = errors.New("invalid authorization header")
)

// TokenParser verifies a raw bearer token.
type TokenParser interface {
	Parse(token string) (*jwt.UserClaims, error)
}

// Identity is the caller resolved from a verified token.
type Identity struct {
	UserID   string
	Username string
	Role     stock.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == stock.RoleAdmin
}

// ParseAuthorization verifies an Authorization header value and returns the caller.
func ParseAuthorization(header string, parser TokenParser) (*Identity, error) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return nil, ErrMissingAuthorization
	}
	if parser == nil {
		return nil, errors.Wrap(ErrInvalidAuthorization, "no token parser configured")
	}

	fields := strings.Fields(library.StripBearerPrefix(trimmed))
	if len(fields) != 1 {
		return nil, ErrInvalidAuthorization
	}

	claims, err := parser.Parse(fields[0])
	if err != nil {
		return nil, errors.Wrap(ErrInvalidAuthorization, err.Error())
	}

	role := stock.Role(strings.ToLower(strings.TrimSpace(claims.Role)))
	if !role.Valid() {
		role = stock.RoleUser
	}

	return &Identity{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     role,
	}, nil
}

// WithIdentity stores the caller on a request context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	if ctx == nil || identity == nil {
		return ctx
	}

	return context.WithValue(ctx, ctxkeys.Identity, identity)
}

// FromContext retrieves the caller from a request context.
func FromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}

	identity, ok := ctx.Value(ctxkeys.Identity).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}

	return identity, true
}

// WithError records a rejected token so later authorization reports it.
func WithError(ctx context.Context, err error) context.Context {
	if ctx == nil || err == nil {
		return ctx
	}

	return context.WithValue(ctx, ctxkeys.AuthError, err)
}

// ErrorFromContext returns the token rejection recorded by WithError.
func ErrorFromContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}

	err, _ := ctx.Value(ctxkeys.AuthError).(error)
	return err
}

// ResolveContext parses header and attaches either the identity or the
// rejection to ctx. An empty header, or a nil parser when tokens are not
// configured, leaves ctx untouched.
func ResolveContext(ctx context.Context, header string, parser TokenParser) context.Context {
	if parser == nil || strings.TrimSpace(header) == "" {
		return ctx
	}

	identity, err := ParseAuthorization(header, parser)
	if err != nil {
		return WithError(ctx, err)
	}

	return WithIdentity(ctx, identity)
}
