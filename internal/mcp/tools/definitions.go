package tools

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Laisky/docstock/internal/stock"
)

func paginationOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("limit", mcp.Min(1), mcp.Description("Maximum number of rows to return.")),
		mcp.WithNumber("offset", mcp.Min(0), mcp.Description("Number of rows to skip.")),
	}
}

func readOnly() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	}
}

func build(op stock.Operation, description string, groups ...[]mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(description)}
	for _, group := range groups {
		opts = append(opts, group...)
	}
	return mcp.NewTool(string(op), opts...)
}

func opts(options ...mcp.ToolOption) []mcp.ToolOption { return options }

// Definition returns the MCP metadata for op.
func Definition(op stock.Operation) (mcp.Tool, bool) {
	switch op {
	case stock.OpListFiles:
		return build(op, "List active files, newest upload first. Optional category filter and case-insensitive search over name, original name and description.",
			opts(
				mcp.WithString("category", mcp.Description("Exact category name.")),
				mcp.WithString("search", mcp.Description("Substring matched case-insensitively.")),
			),
			paginationOptions(), readOnly()), true
	case stock.OpGetFile:
		return build(op, "Get one active file by id.",
			opts(mcp.WithString("id", mcp.Required(), mcp.Description("File UUID."))),
			readOnly()), true
	case stock.OpCreateFile:
		return build(op, "Register an uploaded file. The category must already exist.",
			opts(
				mcp.WithString("name", mcp.Required(), mcp.Description("Display name.")),
				mcp.WithString("original_name", mcp.Required(), mcp.Description("Name of the file as uploaded.")),
				mcp.WithNumber("size", mcp.Required(), mcp.Min(0), mcp.Description("Size in bytes.")),
				mcp.WithString("category", mcp.Required(), mcp.Description("Existing category name.")),
				mcp.WithString("file_path", mcp.Required(), mcp.Description("Blob storage key.")),
				mcp.WithString("uploaded_by", mcp.Required(), mcp.Description("Uploader profile UUID.")),
				mcp.WithString("description", mcp.Description("Free-form description.")),
				mcp.WithString("mime_type", mcp.Description("MIME type of the content.")),
			)), true
	case stock.OpUpdateFile:
		return build(op, "Update file metadata or soft-delete it with is_deleted=true.",
			opts(
				mcp.WithString("id", mcp.Required(), mcp.Description("File UUID.")),
				mcp.WithString("name", mcp.Description("New display name.")),
				mcp.WithString("category", mcp.Description("New existing category name.")),
				mcp.WithString("description", mcp.Description("New description; empty string clears it.")),
				mcp.WithBoolean("is_deleted", mcp.Description("Only true is accepted.")),
			)), true
	case stock.OpDeleteFile:
		return build(op, "Soft-delete a file. The record and its blob are kept.",
			opts(
				mcp.WithString("id", mcp.Required(), mcp.Description("File UUID.")),
				mcp.WithDestructiveHintAnnotation(true),
			)), true
	case stock.OpRestoreFile:
		return build(op, "Restore a soft-deleted file. Its category must still exist.",
			opts(mcp.WithString("id", mcp.Required(), mcp.Description("File UUID.")))), true
	case stock.OpListCategories:
		return build(op, "List categories ordered by name.", paginationOptions(), readOnly()), true
	case stock.OpGetCategory:
		return build(op, "Get one category by id or name. The id wins when both are given.",
			opts(
				mcp.WithString("id", mcp.Description("Category UUID.")),
				mcp.WithString("name", mcp.Description("Category name.")),
			),
			readOnly()), true
	case stock.OpCreateCategory:
		return build(op, "Create a category with a unique name.",
			opts(
				mcp.WithString("name", mcp.Required(), mcp.Description("Unique category name.")),
				mcp.WithString("description", mcp.Description("Free-form description.")),
				mcp.WithString("created_by", mcp.Description("Creator profile UUID.")),
			)), true
	case stock.OpUpdateCategory:
		return build(op, "Rename a category or change its description. Files follow a rename.",
			opts(
				mcp.WithString("id", mcp.Required(), mcp.Description("Category UUID.")),
				mcp.WithString("name", mcp.Description("New unique name.")),
				mcp.WithString("description", mcp.Description("New description; empty string clears it.")),
			)), true
	case stock.OpDeleteCategory:
		return build(op, "Delete a category. Fails with CONFLICT while active files still use it.",
			opts(
				mcp.WithString("id", mcp.Required(), mcp.Description("Category UUID.")),
				mcp.WithDestructiveHintAnnotation(true),
			)), true
	case stock.OpListUsers:
		return build(op, "List user profiles, optionally filtered by role.",
			opts(mcp.WithString("user_type", mcp.Enum(string(stock.RoleAdmin), string(stock.RoleUser)), mcp.Description("Role filter."))),
			paginationOptions(), readOnly()), true
	case stock.OpGetUser:
		return build(op, "Get one user profile by id or username.",
			opts(
				mcp.WithString("id", mcp.Description("Profile UUID.")),
				mcp.WithString("username", mcp.Description("Username.")),
			),
			readOnly()), true
	case stock.OpGetFileStats:
		return build(op, "Aggregate active files: totals, average size, per-category totals and a daily upload timeline in UTC.",
			opts(
				mcp.WithString("category", mcp.Description("Exact category name.")),
				mcp.WithString("date_from", mcp.Description("Inclusive start, YYYY-MM-DD or RFC 3339.")),
				mcp.WithString("date_to", mcp.Description("End, YYYY-MM-DD covers the whole day, RFC 3339 is inclusive.")),
			),
			readOnly()), true
	case stock.OpGetCategoryUsage:
		return build(op, "Active file count and usage percentage per category.", readOnly()), true
	default:
		return mcp.Tool{}, false
	}
}
