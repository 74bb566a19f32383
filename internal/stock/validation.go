package stock

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

const dateOnlyLayout = "2006-01-02"

// Parser turns raw argument bags into typed requests.
// It holds the pagination limits the requests are normalized against.
type Parser struct {
	limitDefault int
	limitMax     int
}

// NewParser builds a Parser using the list limits from settings.
func NewParser(settings Settings) Parser {
	settings = settings.normalize()
	return Parser{limitDefault: settings.ListLimitDefault, limitMax: settings.ListLimitMax}
}

// ParseRequest validates args for the named operation with default limits.
func ParseRequest(name string, args map[string]any) (Request, error) {
	return NewParser(DefaultSettings()).Parse(name, args)
}

// Parse validates args for the named operation and returns the typed request.
// Every failure is a *Error with code VALIDATION_FAILED or UNKNOWN_OPERATION.
func (p Parser) Parse(name string, args map[string]any) (Request, error) {
	r := argReader{args: args}
	switch Operation(strings.TrimSpace(name)) {
	case OpListFiles:
		return p.parseListFiles(r)
	case OpGetFile:
		id, err := r.requiredUUID("id")
		if err != nil {
			return nil, err
		}
		return GetFileRequest{ID: id}, nil
	case OpCreateFile:
		return parseCreateFile(r)
	case OpUpdateFile:
		return parseUpdateFile(r)
	case OpDeleteFile:
		id, err := r.requiredUUID("id")
		if err != nil {
			return nil, err
		}
		return DeleteFileRequest{ID: id}, nil
	case OpRestoreFile:
		id, err := r.requiredUUID("id")
		if err != nil {
			return nil, err
		}
		return RestoreFileRequest{ID: id}, nil
	case OpListCategories:
		page, err := p.parsePage(r)
		if err != nil {
			return nil, err
		}
		return ListCategoriesRequest{Page: page}, nil
	case OpGetCategory:
		return parseGetCategory(r)
	case OpCreateCategory:
		return parseCreateCategory(r)
	case OpUpdateCategory:
		return parseUpdateCategory(r)
	case OpDeleteCategory:
		id, err := r.requiredUUID("id")
		if err != nil {
			return nil, err
		}
		return DeleteCategoryRequest{ID: id}, nil
	case OpListUsers:
		return p.parseListUsers(r)
	case OpGetUser:
		return parseGetUser(r)
	case OpGetFileStats:
		return parseFileStats(r)
	case OpGetCategoryUsage:
		return CategoryUsageRequest{}, nil
	default:
		return nil, NewError(ErrCodeUnknownOperation, fmt.Sprintf("Unknown tool: %s", name)).
			WithDetail("operation", name)
	}
}

func (p Parser) parsePage(r argReader) (Page, error) {
	page := Page{Limit: p.limitDefault}
	limit, err := r.optionalInt("limit", 1)
	if err != nil {
		return page, err
	}
	if limit != nil {
		page.Limit = int(min(*limit, int64(p.limitMax)))
	}
	offset, err := r.optionalInt("offset", 0)
	if err != nil {
		return page, err
	}
	if offset != nil {
		page.Offset = int(*offset)
	}
	return page, nil
}

func (p Parser) parseListFiles(r argReader) (Request, error) {
	page, err := p.parsePage(r)
	if err != nil {
		return nil, err
	}
	req := ListFilesRequest{Page: page}
	if req.Category, err = r.optionalTrimmed("category"); err != nil {
		return nil, err
	}
	if req.Search, err = r.optionalTrimmed("search"); err != nil {
		return nil, err
	}
	includeDeleted, err := r.optionalBool("include_deleted")
	if err != nil {
		return nil, err
	}
	req.IncludeDeleted = includeDeleted != nil && *includeDeleted
	return req, nil
}

func parseCreateFile(r argReader) (Request, error) {
	var (
		req CreateFileRequest
		err error
	)
	if req.Name, err = r.requiredString("name"); err != nil {
		return nil, err
	}
	if req.OriginalName, err = r.requiredString("original_name"); err != nil {
		return nil, err
	}
	size, err := r.requiredInt("size", 0)
	if err != nil {
		return nil, err
	}
	req.Size = size
	if req.Category, err = r.requiredString("category"); err != nil {
		return nil, err
	}
	if req.FilePath, err = r.requiredString("file_path"); err != nil {
		return nil, err
	}
	if req.Description, err = r.optionalString("description"); err != nil {
		return nil, err
	}
	if req.MimeType, err = r.optionalString("mime_type"); err != nil {
		return nil, err
	}
	uploadedBy, err := r.requiredUUID("uploaded_by")
	if err != nil {
		return nil, err
	}
	req.UploadedBy = &uploadedBy
	return req, nil
}

func parseUpdateFile(r argReader) (Request, error) {
	var (
		req UpdateFileRequest
		err error
	)
	if req.ID, err = r.requiredUUID("id"); err != nil {
		return nil, err
	}
	if req.Name, err = r.optionalNonBlank("name"); err != nil {
		return nil, err
	}
	if req.Category, err = r.optionalNonBlank("category"); err != nil {
		return nil, err
	}
	if req.Description, err = r.optionalString("description"); err != nil {
		return nil, err
	}
	isDeleted, err := r.optionalBool("is_deleted")
	if err != nil {
		return nil, err
	}
	if isDeleted != nil {
		if !*isDeleted {
			return nil, newValidationError("is_deleted", "enum",
				"is_deleted can only be set to true; use restore_file to undelete")
		}
		req.SoftDelete = true
	}
	if req.Name == nil && req.Category == nil && req.Description == nil && !req.SoftDelete {
		return nil, newValidationError("", "required",
			"at least one of name, category, description, is_deleted must be provided")
	}
	return req, nil
}

func parseGetCategory(r argReader) (Request, error) {
	id, err := r.optionalUUID("id")
	if err != nil {
		return nil, err
	}
	if id != nil {
		return GetCategoryRequest{ID: *id}, nil
	}
	name, err := r.optionalTrimmed("name")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, newValidationError("id", "one_of", "Either id or name must be provided")
	}
	return GetCategoryRequest{Name: name}, nil
}

func parseCreateCategory(r argReader) (Request, error) {
	var (
		req CreateCategoryRequest
		err error
	)
	if req.Name, err = r.requiredString("name"); err != nil {
		return nil, err
	}
	if req.Description, err = r.optionalString("description"); err != nil {
		return nil, err
	}
	if req.CreatedBy, err = r.optionalUUID("created_by"); err != nil {
		return nil, err
	}
	return req, nil
}

func parseUpdateCategory(r argReader) (Request, error) {
	var (
		req UpdateCategoryRequest
		err error
	)
	if req.ID, err = r.requiredUUID("id"); err != nil {
		return nil, err
	}
	if req.Name, err = r.optionalNonBlank("name"); err != nil {
		return nil, err
	}
	if req.Description, err = r.optionalString("description"); err != nil {
		return nil, err
	}
	if req.Name == nil && req.Description == nil {
		return nil, newValidationError("", "required", "at least one of name, description must be provided")
	}
	return req, nil
}

func (p Parser) parseListUsers(r argReader) (Request, error) {
	page, err := p.parsePage(r)
	if err != nil {
		return nil, err
	}
	req := ListUsersRequest{Page: page}
	userType, err := r.optionalTrimmed("user_type")
	if err != nil {
		return nil, err
	}
	if userType != "" {
		role := Role(userType)
		if !role.Valid() {
			return nil, newValidationError("user_type", "enum", "user_type must be one of admin, user")
		}
		req.UserType = role
	}
	return req, nil
}

func parseGetUser(r argReader) (Request, error) {
	id, err := r.optionalUUID("id")
	if err != nil {
		return nil, err
	}
	if id != nil {
		return GetUserRequest{ID: *id}, nil
	}
	username, err := r.optionalTrimmed("username")
	if err != nil {
		return nil, err
	}
	if username == "" {
		return nil, newValidationError("id", "one_of", "Either id or username must be provided")
	}
	return GetUserRequest{Username: username}, nil
}

func parseFileStats(r argReader) (Request, error) {
	var (
		req FileStatsRequest
		err error
	)
	if req.Category, err = r.optionalTrimmed("category"); err != nil {
		return nil, err
	}
	from, _, err := r.optionalDate("date_from")
	if err != nil {
		return nil, err
	}
	until, dateOnly, err := r.optionalDate("date_to")
	if err != nil {
		return nil, err
	}
	if until != nil && dateOnly {
		next := until.AddDate(0, 0, 1)
		until = &next
		req.Range.UntilExclusive = true
	}
	if from != nil && until != nil {
		if from.After(*until) || (req.Range.UntilExclusive && !from.Before(*until)) {
			return nil, newValidationError("date_from", "format", "date_from must not be after date_to")
		}
	}
	req.Range.From = from
	req.Range.Until = until
	return req, nil
}

// argReader reads typed values out of a loosely typed argument bag.
// A JSON null is treated the same as an absent key.
type argReader struct {
	args map[string]any
}

func (r argReader) lookup(key string) (any, bool) {
	if r.args == nil {
		return nil, false
	}
	value, ok := r.args[key]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

func (r argReader) optionalString(key string) (*string, error) {
	raw, ok := r.lookup(key)
	if !ok {
		return nil, nil
	}
	value, ok := raw.(string)
	if !ok {
		return nil, newValidationError(key, "type", fmt.Sprintf("%s must be a string", key))
	}
	return &value, nil
}

// optionalNonBlank returns a trimmed string, rejecting a present but blank value.
func (r argReader) optionalNonBlank(key string) (*string, error) {
	value, err := r.optionalString(key)
	if err != nil || value == nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, newValidationError(key, "required", fmt.Sprintf("%s cannot be empty", key))
	}
	return &trimmed, nil
}

func (r argReader) optionalTrimmed(key string) (string, error) {
	value, err := r.optionalString(key)
	if err != nil || value == nil {
		return "", err
	}
	return strings.TrimSpace(*value), nil
}

func (r argReader) requiredString(key string) (string, error) {
	value, err := r.optionalString(key)
	if err != nil {
		return "", err
	}
	if value == nil || strings.TrimSpace(*value) == "" {
		return "", newValidationError(key, "required", fmt.Sprintf("%s is required", key))
	}
	return strings.TrimSpace(*value), nil
}

func (r argReader) optionalUUID(key string) (*string, error) {
	value, err := r.optionalTrimmed(key)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(value)
	if err != nil {
		return nil, newValidationError(key, "uuid", fmt.Sprintf("%s must be a valid UUID", key))
	}
	canonical := parsed.String()
	return &canonical, nil
}

func (r argReader) requiredUUID(key string) (string, error) {
	value, err := r.optionalUUID(key)
	if err != nil {
		return "", err
	}
	if value == nil {
		return "", newValidationError(key, "required", fmt.Sprintf("%s is required", key))
	}
	return *value, nil
}

func (r argReader) optionalBool(key string) (*bool, error) {
	raw, ok := r.lookup(key)
	if !ok {
		return nil, nil
	}
	value, ok := raw.(bool)
	if !ok {
		return nil, newValidationError(key, "type", fmt.Sprintf("%s must be a boolean", key))
	}
	return &value, nil
}

// optionalInt reads an integral number that must be >= lower.
func (r argReader) optionalInt(key string, lower int64) (*int64, error) {
	raw, ok := r.lookup(key)
	if !ok {
		return nil, nil
	}
	var number float64
	switch v := raw.(type) {
	case float64:
		number = v
	case float32:
		number = float64(v)
	case int:
		number = float64(v)
	case int64:
		number = float64(v)
	case int32:
		number = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, newValidationError(key, "type", fmt.Sprintf("%s must be a number", key))
		}
		number = parsed
	default:
		return nil, newValidationError(key, "type", fmt.Sprintf("%s must be a number", key))
	}
	if math.IsNaN(number) || math.IsInf(number, 0) || math.Trunc(number) != number {
		return nil, newValidationError(key, "integer", fmt.Sprintf("%s must be an integer", key))
	}
	if number < float64(lower) {
		return nil, newValidationError(key, "min", fmt.Sprintf("%s must be >= %d", key, lower))
	}
	if number > math.MaxInt64/2 {
		return nil, newValidationError(key, "integer", fmt.Sprintf("%s is too large", key))
	}
	value := int64(number)
	return &value, nil
}

func (r argReader) requiredInt(key string, lower int64) (int64, error) {
	value, err := r.optionalInt(key, lower)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return 0, newValidationError(key, "required", fmt.Sprintf("%s is required", key))
	}
	return *value, nil
}

// optionalDate accepts RFC3339 timestamps or YYYY-MM-DD dates, normalized to UTC.
// dateOnly reports whether the value carried no time component.
func (r argReader) optionalDate(key string) (value *time.Time, dateOnly bool, err error) {
	text, err := r.optionalTrimmed(key)
	if err != nil || text == "" {
		return nil, false, err
	}
	if parsed, parseErr := time.Parse(time.RFC3339Nano, text); parseErr == nil {
		utc := parsed.UTC()
		return &utc, false, nil
	}
	if parsed, parseErr := time.Parse(dateOnlyLayout, text); parseErr == nil {
		return &parsed, true, nil
	}
	return nil, false, newValidationError(key, "format",
		fmt.Sprintf("%s must be an RFC3339 timestamp or a YYYY-MM-DD date", key))
}
