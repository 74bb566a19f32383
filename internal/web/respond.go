package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Laisky/docstock/internal/mcp/auth"
	"github.com/Laisky/docstock/internal/stock"
)

// statusForCode maps a failure code onto an HTTP status.
func statusForCode(code stock.ErrorCode) int {
	switch code {
	case stock.ErrCodeValidation:
		return http.StatusBadRequest
	case stock.ErrCodeUnknownOperation, stock.ErrCodeNotFound:
		return http.StatusNotFound
	case stock.ErrCodeConflict:
		return http.StatusConflict
	case auth.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case auth.ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// writeEnvelope renders the dispatcher answer: the payload with 200, or the
// failure body with the mapped status.
func writeEnvelope(ctx *gin.Context, env stock.Envelope) {
	if env.IsError() {
		writeErrorBody(ctx, env.Err)
		return
	}
	ctx.JSON(http.StatusOK, env.Data)
}

func writeErrorBody(ctx *gin.Context, body *stock.ErrorBody) {
	ctx.AbortWithStatusJSON(statusForCode(body.Code), body)
}

func writeError(ctx *gin.Context, err error) {
	writeErrorBody(ctx, stock.NewErrorBody(err))
}

// authorize writes the failure and returns false when the caller may not run op.
func (s *Server) authorize(ctx *gin.Context, op stock.Operation) bool {
	if denied := s.gate.Authorize(ctx.Request.Context(), op); denied != nil {
		writeError(ctx, denied)
		return false
	}
	return true
}
