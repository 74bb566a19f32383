package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/jackc/pgx/v5"
)

const defaultMaxLoggedParamLength = 256

type traceStartKey struct{}

type traceStart struct {
	at   time.Time
	sql  string
	args []any
}

// queryTracer logs every statement with oversized parameters truncated.
type queryTracer struct {
	logger               logSDK.Logger
	maxLoggedParamLength int
}

func newQueryTracer(logger logSDK.Logger) *queryTracer {
	return &queryTracer{logger: logger, maxLoggedParamLength: defaultMaxLoggedParamLength}
}

// TraceQueryStart implements pgx.QueryTracer.
func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{at: time.Now(), sql: data.SQL, args: data.Args})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, _ := ctx.Value(traceStartKey{}).(traceStart)
	fields := []zap.Field{
		zap.String("sql", compactSQL(start.sql)),
		zap.Any("args", sanitizeLoggedSQLParams(t.maxLoggedParamLength, start.args...)),
		zap.Duration("cost", time.Since(start.at)),
		zap.Int64("rows", data.CommandTag.RowsAffected()),
	}
	if data.Err != nil {
		t.logger.Debug("postgres query failed", append(fields, zap.Error(data.Err))...)
		return
	}
	t.logger.Debug("postgres query", fields...)
}

// sanitizeLoggedSQLParams applies sanitizeLoggedSQLParam to every parameter.
func sanitizeLoggedSQLParams(maxLoggedParamLength int, params ...any) []any {
	filtered := make([]any, len(params))
	for idx, param := range params {
		filtered[idx] = sanitizeLoggedSQLParam(param, maxLoggedParamLength)
	}
	return filtered
}

// sanitizeLoggedSQLParam converts oversized parameter values into compact log-safe summaries.
func sanitizeLoggedSQLParam(param any, maxLoggedParamLength int) any {
	switch value := param.(type) {
	case string:
		if len(value) > maxLoggedParamLength {
			return fmt.Sprintf("<string:len=%d,truncated>", len(value))
		}
		return value
	case *string:
		if value == nil {
			return nil
		}
		return sanitizeLoggedSQLParam(*value, maxLoggedParamLength)
	case []byte:
		if len(value) > maxLoggedParamLength {
			return fmt.Sprintf("<bytes:len=%d,truncated>", len(value))
		}
		return value
	default:
		return param
	}
}

// compactSQL folds whitespace so multi-line statements log on one line.
func compactSQL(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
