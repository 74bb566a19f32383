package stock

import (
	"context"
	"fmt"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/Laisky/docstock/library/log"
)

// Dispatcher is the single entry point for named stock operations.
// It validates the argument bag once, routes the typed request and
// normalizes every outcome into an Envelope. Nothing is retried.
type Dispatcher struct {
	svc    *Service
	parser Parser
	logger logSDK.Logger
}

// NewDispatcher constructs a Dispatcher over svc.
func NewDispatcher(svc *Service, logger logSDK.Logger) (*Dispatcher, error) {
	if svc == nil {
		return nil, errors.New("stock service is required")
	}
	if logger == nil {
		logger = log.Logger.Named("stock_dispatcher")
	}
	return &Dispatcher{
		svc:    svc,
		parser: NewParser(svc.Settings()),
		logger: logger,
	}, nil
}

// Dispatch executes the named operation with args.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (env Envelope) {
	op := Operation(name)
	startAt := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("stock operation panicked",
				zap.String("operation", name),
				zap.Any("panic", recovered))
			env = errorEnvelope(op, NewError(ErrCodeStore, fmt.Sprintf("internal error: %v", recovered)))
		}
	}()

	req, err := d.parser.Parse(name, args)
	if err != nil {
		d.logger.Debug("stock request rejected", zap.String("operation", name), zap.Error(err))
		return errorEnvelope(op, err)
	}

	data, err := d.execute(ctx, req)
	fields := []zap.Field{
		zap.String("operation", name),
		zap.Duration("cost", time.Since(startAt)),
	}
	if err != nil {
		env = errorEnvelope(op, err)
		fields = append(fields, zap.String("code", string(env.Err.Code)), zap.Error(err))
		if env.Kind() == KindStore {
			d.logger.Error("stock operation failed", fields...)
		} else {
			d.logger.Debug("stock operation refused", fields...)
		}
		return env
	}

	d.logger.Debug("stock operation succeeded", fields...)
	return successEnvelope(op, data)
}

func (d *Dispatcher) execute(ctx context.Context, req Request) (any, error) {
	switch r := req.(type) {
	case ListFilesRequest:
		files, err := d.svc.ListFiles(ctx, r)
		if err != nil {
			return nil, err
		}
		return fileListPayload{Files: files, Count: len(files)}, nil
	case GetFileRequest:
		return d.svc.GetFile(ctx, r.ID)
	case CreateFileRequest:
		file, err := d.svc.CreateFile(ctx, r)
		if err != nil {
			return nil, err
		}
		return fileMutationPayload{Success: true, File: file}, nil
	case UpdateFileRequest:
		file, err := d.svc.UpdateFile(ctx, r)
		if err != nil {
			return nil, err
		}
		return fileMutationPayload{Success: true, File: file}, nil
	case DeleteFileRequest:
		file, err := d.svc.DeleteFile(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		return fileDeletionPayload{Success: true, DeletedFile: file}, nil
	case RestoreFileRequest:
		file, err := d.svc.RestoreFile(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		return fileMutationPayload{Success: true, File: file}, nil
	case ListCategoriesRequest:
		categories, err := d.svc.ListCategories(ctx, r)
		if err != nil {
			return nil, err
		}
		return categoryListPayload{Categories: categories, Count: len(categories)}, nil
	case GetCategoryRequest:
		return d.svc.GetCategory(ctx, r)
	case CreateCategoryRequest:
		category, err := d.svc.CreateCategory(ctx, r)
		if err != nil {
			return nil, err
		}
		return categoryMutationPayload{Success: true, Category: category}, nil
	case UpdateCategoryRequest:
		category, err := d.svc.UpdateCategory(ctx, r)
		if err != nil {
			return nil, err
		}
		return categoryMutationPayload{Success: true, Category: category}, nil
	case DeleteCategoryRequest:
		category, err := d.svc.DeleteCategory(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		return categoryDeletionPayload{Success: true, DeletedCategory: category}, nil
	case ListUsersRequest:
		users, err := d.svc.ListUsers(ctx, r)
		if err != nil {
			return nil, err
		}
		return userListPayload{Users: users, Count: len(users)}, nil
	case GetUserRequest:
		return d.svc.GetUser(ctx, r)
	case FileStatsRequest:
		return d.svc.FileStats(ctx, r)
	case CategoryUsageRequest:
		usage, err := d.svc.CategoryUsage(ctx)
		if err != nil {
			return nil, err
		}
		return categoryUsagePayload{CategoryUsage: usage}, nil
	default:
		return nil, NewError(ErrCodeUnknownOperation, fmt.Sprintf("Unknown tool: %T", req))
	}
}
