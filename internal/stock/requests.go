package stock

import "time"

// Operation names a dispatchable tool operation.
type Operation string

const (
	OpListFiles        Operation = "list_files"
	OpGetFile          Operation = "get_file"
	OpCreateFile       Operation = "create_file"
	OpUpdateFile       Operation = "update_file"
	OpDeleteFile       Operation = "delete_file"
	OpRestoreFile      Operation = "restore_file"
	OpListCategories   Operation = "list_categories"
	OpGetCategory      Operation = "get_category"
	OpCreateCategory   Operation = "create_category"
	OpUpdateCategory   Operation = "update_category"
	OpDeleteCategory   Operation = "delete_category"
	OpListUsers        Operation = "list_users"
	OpGetUser          Operation = "get_user"
	OpGetFileStats     Operation = "get_file_stats"
	OpGetCategoryUsage Operation = "get_category_usage"
)

// Operations lists every operation in registration order.
var Operations = []Operation{
	OpListFiles,
	OpGetFile,
	OpCreateFile,
	OpUpdateFile,
	OpDeleteFile,
	OpRestoreFile,
	OpListCategories,
	OpGetCategory,
	OpCreateCategory,
	OpUpdateCategory,
	OpDeleteCategory,
	OpListUsers,
	OpGetUser,
	OpGetFileStats,
	OpGetCategoryUsage,
}

// IsMutation reports whether the operation writes to the store.
func (op Operation) IsMutation() bool {
	switch op {
	case OpCreateFile, OpUpdateFile, OpDeleteFile, OpRestoreFile,
		OpCreateCategory, OpUpdateCategory, OpDeleteCategory:
		return true
	default:
		return false
	}
}

// Request is a validated, operation-specific argument set.
type Request interface {
	Operation() Operation
}

// Page carries normalized pagination.
type Page struct {
	Limit  int
	Offset int
}

type ListFilesRequest struct {
	Category       string
	Search         string
	IncludeDeleted bool
	Page
}

type GetFileRequest struct {
	ID string
}

type CreateFileRequest struct {
	Name         string
	OriginalName string
	Size         int64
	Category     string
	Description  *string
	FilePath     string
	MimeType     *string
	UploadedBy   *string
}

// UpdateFileRequest is a partial update. SoftDelete is set only by is_deleted=true.
type UpdateFileRequest struct {
	ID          string
	Name        *string
	Category    *string
	Description *string
	SoftDelete  bool
}

type DeleteFileRequest struct {
	ID string
}

type RestoreFileRequest struct {
	ID string
}

type ListCategoriesRequest struct {
	Page
}

// GetCategoryRequest looks a category up by ID, or by Name when ID is empty.
type GetCategoryRequest struct {
	ID   string
	Name string
}

type CreateCategoryRequest struct {
	Name        string
	Description *string
	CreatedBy   *string
}

type UpdateCategoryRequest struct {
	ID          string
	Name        *string
	Description *string
}

type DeleteCategoryRequest struct {
	ID string
}

type ListUsersRequest struct {
	UserType Role
	Page
}

// GetUserRequest looks a profile up by ID, or by Username when ID is empty.
type GetUserRequest struct {
	ID       string
	Username string
}

// FileStatsRequest filters the files aggregated by get_file_stats.
type FileStatsRequest struct {
	Category string
	Range    TimeRange
}

type CategoryUsageRequest struct{}

// TimeRange bounds uploaded_at. Both ends are optional.
// When UntilExclusive is set the upper bound excludes Until itself.
type TimeRange struct {
	From           *time.Time
	Until          *time.Time
	UntilExclusive bool
}

func (ListFilesRequest) Operation() Operation      { return OpListFiles }
func (GetFileRequest) Operation() Operation        { return OpGetFile }
func (CreateFileRequest) Operation() Operation     { return OpCreateFile }
func (UpdateFileRequest) Operation() Operation     { return OpUpdateFile }
func (DeleteFileRequest) Operation() Operation     { return OpDeleteFile }
func (RestoreFileRequest) Operation() Operation    { return OpRestoreFile }
func (ListCategoriesRequest) Operation() Operation { return OpListCategories }
func (GetCategoryRequest) Operation() Operation    { return OpGetCategory }
func (CreateCategoryRequest) Operation() Operation { return OpCreateCategory }
func (UpdateCategoryRequest) Operation() Operation { return OpUpdateCategory }
func (DeleteCategoryRequest) Operation() Operation { return OpDeleteCategory }
func (ListUsersRequest) Operation() Operation      { return OpListUsers }
func (GetUserRequest) Operation() Operation        { return OpGetUser }
func (FileStatsRequest) Operation() Operation      { return OpGetFileStats }
func (CategoryUsageRequest) Operation() Operation  { return OpGetCategoryUsage }
