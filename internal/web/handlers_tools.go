package web

import (
	"encoding/json"
	"io"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/docstock/internal/stock"
)

// maxToolBodyBytes bounds the JSON argument bag of one tool call.
const maxToolBodyBytes = 1 << 20

// handleTool runs POST /api/tools/:name with a JSON object body as arguments.
func (s *Server) handleTool(ctx *gin.Context) {
	name := ctx.Param("name")
	if !s.authorize(ctx, stock.Operation(name)) {
		return
	}

	args, err := decodeArguments(io.LimitReader(ctx.Request.Body, maxToolBodyBytes))
	if err != nil {
		writeError(ctx, stock.NewError(stock.ErrCodeValidation, err.Error()).
			WithDetail("field", "").
			WithDetail("constraint", "type"))
		return
	}

	env := s.dispatcher.Dispatch(ctx.Request.Context(), name, args)
	if env.IsError() {
		s.loggerFor(ctx).Debug("tool call failed",
			zap.String("tool", name),
			zap.String("code", string(env.Err.Code)))
	}
	writeEnvelope(ctx, env)
}

// decodeArguments reads an optional JSON object. Numbers stay json.Number
// so integer checks see the literal.
func decodeArguments(r io.Reader) (map[string]any, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var args map[string]any
	if err := decoder.Decode(&args); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "request body must be a JSON object")
	}
	return args, nil
}
