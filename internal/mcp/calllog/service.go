package calllog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jinzhu/copier"

	"github.com/Laisky/docstock/library/log"
)

// Status enumerations for recorded tool calls.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Clock provides the current time in UTC.
type Clock func() time.Time

// Service persists and queries tool invocation call logs.
type Service struct {
	db     DB
	logger logSDK.Logger
	clock  Clock
}

// DB defines the database capabilities required by the call log service.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RecordInput captures the information required to persist a tool invocation.
type RecordInput struct {
	ToolName     string
	UserID       string
	Username     string
	Status       string
	ErrorCode    string
	Duration     time.Duration
	Parameters   map[string]any
	ErrorMessage string
	OccurredAt   time.Time
}

// ListOptions configures the result set returned by List.
type ListOptions struct {
	Page      int
	PageSize  int
	ToolName  string
	UserID    string
	Status    string
	SortField string
	SortOrder string
	From      time.Time
	To        time.Time
}

// ListResult packages the results of a List query along with the total count.
type ListResult struct {
	Entries []Entry
	Total   int64
}

const (
	defaultPage = 1
	// defaultPageSize sets the fallback page size for list queries.
	defaultPageSize = 20
	// maxPageSize caps the page size for list queries.
	maxPageSize       = 100
	sortFieldDuration = "duration"
	sortFieldTool     = "tool"
)

const recordColumns = `id, tool_name, user_id, username, status, error_code,
	duration_millis, parameters, error_message, occurred_at, created_at`

// NewService constructs a Service backed by the supplied PostgreSQL connection.
func NewService(ctx context.Context, db DB, logger logSDK.Logger, clock Clock) (*Service, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if logger == nil {
		logger = log.Logger.Named("call_log_service")
	}
	if clock == nil {
		clock = func() time.Time {
			return time.Now().UTC()
		}
	}

	if err := runMigrations(ctx, db); err != nil {
		return nil, errors.Wrap(err, "migrate call_log records")
	}

	return &Service{db: db, logger: logger, clock: clock}, nil
}

// Record stores a tool invocation using the provided input.
func (s *Service) Record(ctx context.Context, input RecordInput) error {
	if s == nil {
		return errors.New("call log service is nil")
	}
	trimmedTool := strings.TrimSpace(input.ToolName)
	if trimmedTool == "" {
		return errors.New("tool name is required")
	}
	status, err := normalizeStatus(input.Status)
	if err != nil {
		return errors.WithStack(err)
	}
	if status == "" {
		status = StatusSuccess
	}

	payload, err := json.Marshal(input.Parameters)
	if err != nil {
		return errors.Wrap(err, "marshal call log parameters")
	}

	occurred := input.OccurredAt
	if occurred.IsZero() {
		occurred = s.clock()
	}

	record := &Record{
		ID:             gutils.UUID7Bytes(),
		ToolName:       trimmedTool,
		UserID:         strings.TrimSpace(input.UserID),
		Username:       strings.TrimSpace(input.Username),
		Status:         status,
		ErrorCode:      strings.TrimSpace(input.ErrorCode),
		DurationMillis: input.Duration.Milliseconds(),
		ParametersJSON: payload,
		ErrorMessage:   strings.TrimSpace(input.ErrorMessage),
		OccurredAt:     occurred.UTC(),
		CreatedAt:      s.clock(),
	}

	// the request may already be cancelled once the tool returns
	ctx = context.WithoutCancel(ctx)
	_, err = s.db.Exec(ctx, `
		INSERT INTO mcp_call_logs (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10, $11)
	`,
		record.ID,
		record.ToolName,
		record.UserID,
		record.Username,
		record.Status,
		record.ErrorCode,
		record.DurationMillis,
		string(record.ParametersJSON),
		record.ErrorMessage,
		record.OccurredAt,
		record.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "create call log record")
	}

	s.logger.Debug("recorded call log", zap.String("tool", trimmedTool), zap.String("status", status))
	return nil
}

// List retrieves records that match the provided filters and pagination options.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if s == nil {
		return nil, errors.New("call log service is nil")
	}

	toolName, err := sanitizeOptionalText(opts.ToolName, maxToolNameLength, "tool name")
	if err != nil {
		return nil, errors.Wrap(err, "sanitize tool name")
	}
	userID, err := sanitizeOptionalText(opts.UserID, maxUserIDLength, "user id")
	if err != nil {
		return nil, errors.Wrap(err, "sanitize user id")
	}
	status, err := normalizeStatus(opts.Status)
	if err != nil {
		return nil, errors.Wrap(err, "sanitize status")
	}

	page := opts.Page
	if page < 1 {
		page = defaultPage
	}
	size := opts.PageSize
	if size <= 0 {
		size = defaultPageSize
	} else if size > maxPageSize {
		size = maxPageSize
	}

	clauses := make([]string, 0, 5)
	args := make([]any, 0, 7)
	argID := 1
	addClause := func(format string, value any) {
		clauses = append(clauses, fmt.Sprintf(format, argID))
		args = append(args, value)
		argID++
	}
	if toolName != "" {
		addClause("tool_name = $%d", toolName)
	}
	if userID != "" {
		addClause("user_id = $%d", userID)
	}
	if status != "" {
		addClause("status = $%d", status)
	}
	if !opts.From.IsZero() {
		addClause("occurred_at >= $%d", opts.From)
	}
	if !opts.To.IsZero() {
		addClause("occurred_at < $%d", opts.To)
	}
	whereSQL := ""
	if len(clauses) > 0 {
		whereSQL = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int64
	countSQL := "SELECT COUNT(*) FROM mcp_call_logs" + whereSQL
	if err := s.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count call log records")
	}

	orderDirection := strings.ToUpper(strings.TrimSpace(opts.SortOrder))
	if orderDirection != "ASC" {
		orderDirection = "DESC"
	}
	listSQL := fmt.Sprintf(`
		SELECT %s
		FROM mcp_call_logs%s
		ORDER BY %s %s, id %s
		OFFSET $%d LIMIT $%d
	`, recordColumns, whereSQL, mapSortField(opts.SortField), orderDirection, orderDirection, argID, argID+1)
	listArgs := append(args, (page-1)*size, size)
	rows, err := s.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, errors.Wrap(err, "query call log records")
	}
	defer rows.Close()

	entries := make([]Entry, 0, size)
	for rows.Next() {
		var record Record
		if scanErr := rows.Scan(
			&record.ID,
			&record.ToolName,
			&record.UserID,
			&record.Username,
			&record.Status,
			&record.ErrorCode,
			&record.DurationMillis,
			&record.ParametersJSON,
			&record.ErrorMessage,
			&record.OccurredAt,
			&record.CreatedAt,
		); scanErr != nil {
			return nil, errors.Wrap(scanErr, "scan call log record")
		}

		entry, convErr := s.toEntry(&record)
		if convErr != nil {
			return nil, errors.WithStack(convErr)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate call log rows")
	}

	return &ListResult{Entries: entries, Total: total}, nil
}

func (s *Service) toEntry(record *Record) (Entry, error) {
	var entry Entry
	if err := copier.Copy(&entry, record); err != nil {
		return Entry{}, errors.Wrap(err, "copy call log record")
	}

	entry.Parameters = map[string]any{}
	if len(record.ParametersJSON) > 0 {
		if err := json.Unmarshal(record.ParametersJSON, &entry.Parameters); err != nil {
			s.logger.Warn("decode call log parameters", zap.Error(err), zap.String("record_id", record.ID.String()))
			entry.Parameters = map[string]any{}
		}
	}

	return entry, nil
}

// migrationStatements creates the call log table and indexes when absent.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS mcp_call_logs (
		id UUID PRIMARY KEY,
		tool_name VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL DEFAULT '',
		username VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		error_code VARCHAR(32) NOT NULL DEFAULT '',
		duration_millis BIGINT,
		parameters JSONB,
		error_message TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mcp_call_logs_tool_name ON mcp_call_logs (tool_name)`,
	`CREATE INDEX IF NOT EXISTS idx_mcp_call_logs_user_id ON mcp_call_logs (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_mcp_call_logs_status ON mcp_call_logs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_mcp_call_logs_occurred_at ON mcp_call_logs (occurred_at DESC)`,
}

func runMigrations(ctx context.Context, db DB) error {
	for _, stmt := range migrationStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "execute call log migration")
		}
	}

	return nil
}

var _ DB = (*pgxpool.Pool)(nil)

func mapSortField(field string) string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case sortFieldDuration:
		return "duration_millis"
	case sortFieldTool:
		return "tool_name"
	default:
		return "occurred_at"
	}
}
