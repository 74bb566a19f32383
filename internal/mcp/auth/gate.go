package auth

import (
	"context"

	"github.com/Laisky/docstock/internal/stock"
)

const (
	// ErrCodeUnauthenticated reports a missing or rejected token.
	ErrCodeUnauthenticated stock.ErrorCode = "UNAUTHENTICATED"
	// ErrCodeForbidden reports a caller without the role an operation needs.
	ErrCodeForbidden stock.ErrorCode = "FORBIDDEN"
)

// Gate decides whether the caller on a context may run an operation.
//
// With Required unset, anonymous callers may run everything; a token that
// was presented but rejected still fails. With Required set, every call
// needs an identity, and mutations need the admin role.
type Gate struct {
	Required bool
}

// Authorize returns nil when the call may proceed.
func (g Gate) Authorize(ctx context.Context, op stock.Operation) *stock.Error {
	if err := ErrorFromContext(ctx); err != nil {
		return stock.NewError(ErrCodeUnauthenticated, err.Error())
	}

	identity, ok := FromContext(ctx)
	if !ok {
		if g.Required {
			return stock.NewError(ErrCodeUnauthenticated, ErrMissingAuthorization.Error())
		}
		return nil
	}

	if g.Required && op.IsMutation() && !identity.IsAdmin() {
		return stock.NewError(ErrCodeForbidden, "admin role required for "+string(op)).
			WithDetail("operation", string(op))
	}

	return nil
}
