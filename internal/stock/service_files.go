package stock

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
)

// ListFiles returns files matching the request, newest first.
func (s *Service) ListFiles(ctx context.Context, req ListFilesRequest) ([]File, error) {
	files, err := s.store.ListFiles(ctx, BuildFileQuery(req))
	if err != nil {
		return nil, errors.Wrap(err, "list files")
	}
	return files, nil
}

// GetFile returns one active file.
func (s *Service) GetFile(ctx context.Context, id string) (*File, error) {
	file, err := s.store.GetFile(ctx, id, false)
	if err != nil {
		return nil, errors.Wrap(err, "get file")
	}
	return file, nil
}

// CreateFile records metadata for a blob the caller has already stored.
// The referenced category must exist.
func (s *Service) CreateFile(ctx context.Context, req CreateFileRequest) (*File, error) {
	file := File{
		ID:           s.newID(),
		Name:         req.Name,
		OriginalName: req.OriginalName,
		Size:         req.Size,
		Category:     req.Category,
		Description:  req.Description,
		FilePath:     req.FilePath,
		MimeType:     req.MimeType,
		UploadedBy:   req.UploadedBy,
		UploadedAt:   s.clock(),
	}

	var created *File
	err := s.inTx(ctx, func(tx Tx) error {
		if err := guardCategoryReference(ctx, tx, req.Category); err != nil {
			return err
		}
		var err error
		created, err = tx.InsertFile(ctx, file)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "create file")
	}

	s.logger.Debug("file created",
		zap.String("file_id", created.ID),
		zap.String("category", created.Category),
		zap.String("file_path", created.FilePath))
	return created, nil
}

// UpdateFile applies a partial update. Moving a file requires the target category to exist.
func (s *Service) UpdateFile(ctx context.Context, req UpdateFileRequest) (*File, error) {
	patch := FilePatch{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		SoftDelete:  req.SoftDelete,
		At:          s.clock(),
	}

	var updated *File
	err := s.inTx(ctx, func(tx Tx) error {
		current, err := tx.LockFile(ctx, req.ID)
		if err != nil {
			return err
		}
		if req.Category != nil && *req.Category != current.Category {
			if err := guardCategoryReference(ctx, tx, *req.Category); err != nil {
				return err
			}
		}
		updated, err = tx.UpdateFile(ctx, req.ID, patch)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "update file")
	}
	return updated, nil
}

// DeleteFile soft-deletes a file. Repeating it re-stamps deleted_at.
func (s *Service) DeleteFile(ctx context.Context, id string) (*File, error) {
	file, err := s.UpdateFile(ctx, UpdateFileRequest{ID: id, SoftDelete: true})
	if err != nil {
		return nil, errors.Wrap(err, "delete file")
	}
	return file, nil
}

// RestoreFile clears the soft-delete flag and timestamp together.
// Restoring an active file is a no-op. The file's category must still exist.
func (s *Service) RestoreFile(ctx context.Context, id string) (*File, error) {
	var restored *File
	err := s.inTx(ctx, func(tx Tx) error {
		current, err := tx.LockFile(ctx, id)
		if err != nil {
			return err
		}
		if !current.IsDeleted {
			restored = current
			return nil
		}
		if err := guardCategoryReference(ctx, tx, current.Category); err != nil {
			return err
		}
		restored, err = tx.UpdateFile(ctx, id, FilePatch{Restore: true, At: s.clock()})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "restore file")
	}
	return restored, nil
}

// PurgeFile removes the metadata row for good and returns what was removed.
// The caller owns removing the blob at FilePath afterwards.
func (s *Service) PurgeFile(ctx context.Context, id string) (*File, error) {
	var purged *File
	err := s.inTx(ctx, func(tx Tx) error {
		current, err := tx.LockFile(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteFile(ctx, id); err != nil {
			return err
		}
		purged = current
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "purge file")
	}

	s.logger.Info("file purged", zap.String("file_id", purged.ID), zap.String("file_path", purged.FilePath))
	return purged, nil
}
