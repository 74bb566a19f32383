package stock

import (
	"fmt"
	"strings"
	"time"
)

// lookupLimit caps single-record lookups so ambiguity can be detected.
const lookupLimit = 2

// FileQuery is the store-level description of a file listing.
type FileQuery struct {
	Category       string
	Search         string
	IncludeDeleted bool
	Range          TimeRange
	Limit          int
	Offset         int
}

// CategoryQuery lists categories by name.
type CategoryQuery struct {
	Limit  int
	Offset int
}

// CategoryLookup selects categories by ID or, when ID is empty, by Name.
type CategoryLookup struct {
	ID   string
	Name string
}

// ProfileQuery lists user profiles, newest first.
type ProfileQuery struct {
	UserType Role
	Limit    int
	Offset   int
}

// ProfileLookup selects profiles by ID or, when ID is empty, by Username.
type ProfileLookup struct {
	ID       string
	Username string
}

// StatsQuery selects the active files aggregated by the analytics engine.
type StatsQuery struct {
	Category string
	Range    TimeRange
}

// BuildFileQuery maps a validated list request onto a store query.
func BuildFileQuery(req ListFilesRequest) FileQuery {
	return FileQuery{
		Category:       req.Category,
		Search:         req.Search,
		IncludeDeleted: req.IncludeDeleted,
		Limit:          req.Limit,
		Offset:         req.Offset,
	}
}

// BuildCategoryQuery maps a validated list request onto a store query.
func BuildCategoryQuery(req ListCategoriesRequest) CategoryQuery {
	return CategoryQuery{Limit: req.Limit, Offset: req.Offset}
}

// BuildProfileQuery maps a validated list request onto a store query.
func BuildProfileQuery(req ListUsersRequest) ProfileQuery {
	return ProfileQuery{UserType: req.UserType, Limit: req.Limit, Offset: req.Offset}
}

// BuildStatsQuery maps a validated stats request onto a store query.
func BuildStatsQuery(req FileStatsRequest) StatsQuery {
	return StatsQuery{Category: req.Category, Range: req.Range}
}

// Matches reports whether an in-memory file satisfies the query filters.
// It mirrors the WHERE clause rendered by fileListSQL.
func (q FileQuery) Matches(f File) bool {
	if !q.IncludeDeleted && f.IsDeleted {
		return false
	}
	if q.Category != "" && f.Category != q.Category {
		return false
	}
	if !q.Range.Contains(f.UploadedAt) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		desc := ""
		if f.Description != nil {
			desc = *f.Description
		}
		if !strings.Contains(strings.ToLower(f.Name), needle) &&
			!strings.Contains(strings.ToLower(f.OriginalName), needle) &&
			!strings.Contains(strings.ToLower(desc), needle) {
			return false
		}
	}
	return true
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.Until != nil {
		if r.UntilExclusive && !t.Before(*r.Until) {
			return false
		}
		if !r.UntilExclusive && t.After(*r.Until) {
			return false
		}
	}
	return true
}

// sqlBuilder accumulates WHERE clauses with $n placeholders.
type sqlBuilder struct {
	clauses []string
	args    []any
}

func (b *sqlBuilder) add(format string, values ...any) {
	placeholders := make([]any, 0, len(values))
	for _, value := range values {
		b.args = append(b.args, value)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(b.args)))
	}
	b.clauses = append(b.clauses, fmt.Sprintf(format, placeholders...))
}

func (b *sqlBuilder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// page renders LIMIT/OFFSET. A non-positive limit leaves the result unbounded.
func (b *sqlBuilder) page(limit, offset int) string {
	if limit <= 0 {
		if offset <= 0 {
			return ""
		}
		b.args = append(b.args, offset)
		return fmt.Sprintf(" OFFSET $%d", len(b.args))
	}
	b.args = append(b.args, limit)
	limitPos := len(b.args)
	b.args = append(b.args, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", limitPos, len(b.args))
}

func (b *sqlBuilder) timeRange(column string, r TimeRange) {
	if r.From != nil {
		b.add(column+" >= %s", *r.From)
	}
	if r.Until != nil {
		if r.UntilExclusive {
			b.add(column+" < %s", *r.Until)
		} else {
			b.add(column+" <= %s", *r.Until)
		}
	}
}

const fileColumns = `id::text, name, original_name, size, category, description, file_path,
	mime_type, uploaded_by::text, uploaded_at, is_deleted, deleted_at`

const categoryColumns = `id::text, name, description, created_at, created_by::text`

const profileColumns = `id::text, username, user_type, full_name, avatar_url, created_at, updated_at`

// escapeLike escapes LIKE wildcards so the search term matches literally.
func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}

// fileListSQL renders a file listing ordered newest first.
func fileListSQL(q FileQuery) (string, []any) {
	b := &sqlBuilder{}
	if !q.IncludeDeleted {
		b.clauses = append(b.clauses, "is_deleted = false")
	}
	if q.Category != "" {
		b.add("category = %s", q.Category)
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(q.Search) + "%"
		b.add("(name ILIKE %s OR original_name ILIKE %s OR description ILIKE %s)", pattern, pattern, pattern)
	}
	b.timeRange("uploaded_at", q.Range)
	query := "SELECT " + fileColumns + " FROM files" + b.where() +
		" ORDER BY uploaded_at DESC, id DESC" + b.page(q.Limit, q.Offset)
	return query, b.args
}

// categoryListSQL renders a category listing ordered by name.
func categoryListSQL(q CategoryQuery) (string, []any) {
	b := &sqlBuilder{}
	query := "SELECT " + categoryColumns + " FROM categories ORDER BY name ASC" + b.page(q.Limit, q.Offset)
	return query, b.args
}

// categoryLookupSQL renders a lookup that fetches at most two rows.
func categoryLookupSQL(l CategoryLookup) (string, []any) {
	b := &sqlBuilder{}
	if l.ID != "" {
		b.add("id = %s", l.ID)
	} else {
		b.add("name = %s", l.Name)
	}
	return fmt.Sprintf("SELECT %s FROM categories%s LIMIT %d", categoryColumns, b.where(), lookupLimit), b.args
}

// profileListSQL renders a profile listing ordered newest first.
func profileListSQL(q ProfileQuery) (string, []any) {
	b := &sqlBuilder{}
	if q.UserType != "" {
		b.add("user_type = %s", string(q.UserType))
	}
	query := "SELECT " + profileColumns + " FROM profiles" + b.where() +
		" ORDER BY created_at DESC" + b.page(q.Limit, q.Offset)
	return query, b.args
}

// profileLookupSQL renders a lookup that fetches at most two rows.
func profileLookupSQL(l ProfileLookup) (string, []any) {
	b := &sqlBuilder{}
	if l.ID != "" {
		b.add("id = %s", l.ID)
	} else {
		b.add("username = %s", l.Username)
	}
	return fmt.Sprintf("SELECT %s FROM profiles%s LIMIT %d", profileColumns, b.where(), lookupLimit), b.args
}

// statsSQL renders the projection of active files used by get_file_stats.
func statsSQL(q StatsQuery) (string, []any) {
	b := &sqlBuilder{}
	b.clauses = append(b.clauses, "is_deleted = false")
	if q.Category != "" {
		b.add("category = %s", q.Category)
	}
	b.timeRange("uploaded_at", q.Range)
	return "SELECT category, size, uploaded_at FROM files" + b.where(), b.args
}
