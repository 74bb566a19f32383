package web

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	errors "github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/Laisky/docstock/internal/blobstore"
	"github.com/Laisky/docstock/internal/mcp/auth"
	"github.com/Laisky/docstock/internal/stock"
)

const defaultContentType = "application/octet-stream"

// ErrCodePayloadTooLarge rejects an upload above the configured limit.
const ErrCodePayloadTooLarge stock.ErrorCode = "PAYLOAD_TOO_LARGE"

// handleUpload stores the multipart "file" part as a blob, then registers it
// through create_file. The row insert can fail after the blob is written; in
// that case the blob is removed, or queued for reconcile when removal fails.
func (s *Server) handleUpload(ctx *gin.Context) {
	if !s.authorize(ctx, stock.OpCreateFile) {
		return
	}
	logger := s.loggerFor(ctx)

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, s.maxUploadBytes+multipartSlackBytes)
	header, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(ctx, s.tooLargeError())
			return
		}
		writeError(ctx, stock.NewError(stock.ErrCodeValidation, "multipart field \"file\" is required: "+err.Error()).
			WithDetail("field", "file").
			WithDetail("constraint", "required"))
		return
	}
	if header.Size > s.maxUploadBytes {
		writeError(ctx, s.tooLargeError())
		return
	}

	uploadedBy := strings.TrimSpace(ctx.PostForm("uploaded_by"))
	if identity, ok := auth.FromContext(ctx.Request.Context()); ok {
		uploadedBy = identity.UserID
	}
	name := strings.TrimSpace(ctx.PostForm("name"))
	if name == "" {
		name = header.Filename
	}
	contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename)
	if !s.mimeAllowed(contentType) {
		writeError(ctx, stock.NewError(stock.ErrCodeValidation, "file type not allowed: "+contentType).
			WithDetail("field", "mime_type").
			WithDetail("constraint", "enum"))
		return
	}

	key := blobstore.GenerateKey(header.Filename, s.clock())
	args := map[string]any{
		"name":          name,
		"original_name": header.Filename,
		"size":          header.Size,
		"category":      ctx.PostForm("category"),
		"file_path":     key,
		"uploaded_by":   uploadedBy,
	}
	if description, ok := ctx.GetPostForm("description"); ok {
		args["description"] = description
	}
	if contentType != "" {
		args["mime_type"] = contentType
	}

	// reject malformed metadata before any byte is stored
	if _, err := stock.ParseRequest(string(stock.OpCreateFile), args); err != nil {
		writeError(ctx, err)
		return
	}

	src, err := header.Open()
	if err != nil {
		writeError(ctx, errors.Wrap(err, "open uploaded file"))
		return
	}
	defer gutils.CloseWithLog(src, logger)

	if contentType == "" {
		contentType = defaultContentType
	}
	if _, err := s.blobs.Upload(ctx.Request.Context(), key, src, header.Size, contentType); err != nil {
		logger.Error("upload blob", zap.Error(err), zap.String("file_path", key))
		writeError(ctx, errors.Wrap(err, "upload blob"))
		return
	}

	env := s.dispatcher.Dispatch(ctx.Request.Context(), string(stock.OpCreateFile), args)
	if env.IsError() {
		logger.Error("blob stored but file row was not created",
			zap.String("file_path", key),
			zap.String("code", string(env.Err.Code)),
			zap.String("message", env.Err.Message))
		s.discardBlob(ctx.Request.Context(), key, "create_file failed: "+env.Err.Message)
		writeErrorBody(ctx, env.Err)
		return
	}

	ctx.JSON(http.StatusCreated, env.Data)
}

func (s *Server) tooLargeError() *stock.Error {
	return stock.NewError(ErrCodePayloadTooLarge,
		fmt.Sprintf("file exceeds the upload limit of %d bytes", s.maxUploadBytes)).
		WithDetail("field", "file").
		WithDetail("max_bytes", s.maxUploadBytes)
}

func (s *Server) mimeAllowed(contentType string) bool {
	if _, ok := s.allowedTypes[AnyMimeType]; ok {
		return true
	}
	_, ok := s.allowedTypes[contentType]
	return ok
}

// uploadContentType normalizes the part Content-Type, falling back to the
// file extension when the client sent none.
func uploadContentType(declared, filename string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" || declared == defaultContentType {
		if guessed := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); guessed != "" {
			declared = guessed
		}
	}
	if declared == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
		return mediaType
	}
	return strings.ToLower(declared)
}

func mimeTypeSet(types []string) map[string]struct{} {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

// handleDownload streams the blob of an active file under its original name.
func (s *Server) handleDownload(ctx *gin.Context) {
	if !s.authorize(ctx, stock.OpGetFile) {
		return
	}

	env := s.dispatcher.Dispatch(ctx.Request.Context(), string(stock.OpGetFile), map[string]any{"id": ctx.Param("id")})
	if env.IsError() {
		writeErrorBody(ctx, env.Err)
		return
	}
	file, ok := env.Data.(*stock.File)
	if !ok || file == nil {
		writeError(ctx, errors.Errorf("unexpected get_file payload %T", env.Data))
		return
	}

	body, info, err := s.blobs.Download(ctx.Request.Context(), file.FilePath)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.loggerFor(ctx).Error("file row has no blob",
				zap.String("file_id", file.ID),
				zap.String("file_path", file.FilePath))
			writeError(ctx, stock.NewError(stock.ErrCodeNotFound, "File content not found").
				WithDetail("file_path", file.FilePath))
			return
		}
		writeError(ctx, errors.Wrap(err, "download blob"))
		return
	}
	defer gutils.CloseWithLog(body, s.loggerFor(ctx))

	contentType := info.ContentType
	if file.MimeType != nil && *file.MimeType != "" {
		contentType = *file.MimeType
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	size := info.Size
	if size <= 0 {
		size = -1
	}
	ctx.DataFromReader(http.StatusOK, size, contentType, body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName}),
	})
}

// handlePurge hard-deletes a file row and its blob. Admin only, whatever
// the auth mode.
func (s *Server) handlePurge(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()
	if err := auth.ErrorFromContext(reqCtx); err != nil {
		writeError(ctx, stock.NewError(auth.ErrCodeUnauthenticated, err.Error()))
		return
	}
	identity, ok := auth.FromContext(reqCtx)
	if !ok {
		writeError(ctx, stock.NewError(auth.ErrCodeUnauthenticated, auth.ErrMissingAuthorization.Error()))
		return
	}
	if !identity.IsAdmin() {
		writeError(ctx, stock.NewError(auth.ErrCodeForbidden, "admin role required to purge files"))
		return
	}

	purged, err := s.purger.PurgeFile(reqCtx, ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}

	s.loggerFor(ctx).Info("file purged",
		zap.String("file_id", purged.ID),
		zap.String("file_path", purged.FilePath),
		zap.String("by", identity.UserID))
	blobDeleted := s.discardBlob(reqCtx, purged.FilePath, "purged file "+purged.ID)

	ctx.JSON(http.StatusOK, gin.H{
		"success":      true,
		"deleted_file": purged,
		"blob_deleted": blobDeleted,
	})
}

// discardBlob removes a blob nobody references. A missing blob counts as
// removed; any other failure queues the key for reconcile.
func (s *Server) discardBlob(ctx context.Context, key, reason string) bool {
	err := s.blobs.Delete(context.WithoutCancel(ctx), key)
	if err == nil || errors.Is(err, blobstore.ErrNotFound) {
		return true
	}

	s.logger.Error("delete blob", zap.Error(err), zap.String("file_path", key))
	if s.orphans == nil {
		return false
	}
	if qErr := s.orphans.AddOrphanBlobTask(context.WithoutCancel(ctx), key, reason); qErr != nil {
		s.logger.Error("queue orphan blob", zap.Error(qErr), zap.String("file_path", key))
	}
	return false
}
