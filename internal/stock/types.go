// Package stock implements the document stock data-access layer: request
// validation, query building, integrity checks, mutations, analytics and the
// tool dispatcher that ties them together.
package stock

import (
	"time"
)

// Role is the access role carried by a user profile.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// File is the metadata row of one stored document.
// IsDeleted is true exactly when DeletedAt is set.
type File struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	OriginalName string     `json:"original_name"`
	Size         int64      `json:"size"`
	Category     string     `json:"category"`
	Description  *string    `json:"description"`
	FilePath     string     `json:"file_path"`
	MimeType     *string    `json:"mime_type"`
	UploadedBy   *string    `json:"uploaded_by"`
	UploadedAt   time.Time  `json:"uploaded_at"`
	IsDeleted    bool       `json:"is_deleted"`
	DeletedAt    *time.Time `json:"deleted_at"`
}

// Category is a named tag files are filed under. Files reference it by name.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   *string   `json:"created_by"`
}

// UserProfile is the read-only identity record of an uploader.
type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	UserType  Role      `json:"user_type"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryTotals aggregates the active files of one category.
type CategoryTotals struct {
	Count     int64 `json:"count"`
	TotalSize int64 `json:"total_size"`
}

// FileStats summarizes the active files matching a stats filter.
type FileStats struct {
	TotalFiles      int64                     `json:"total_files"`
	TotalSize       int64                     `json:"total_size"`
	AverageFileSize int64                     `json:"average_file_size"`
	FilesByCategory map[string]CategoryTotals `json:"files_by_category"`
	UploadTimeline  map[string]int64          `json:"upload_timeline"`
}

// CategoryUsage is a category annotated with how many active files use it.
type CategoryUsage struct {
	Category
	FileCount       int64 `json:"file_count"`
	UsagePercentage int64 `json:"usage_percentage"`
}

// FileStatRow is the projection of an active file the stats engine needs.
type FileStatRow struct {
	Category   string
	Size       int64
	UploadedAt time.Time
}
