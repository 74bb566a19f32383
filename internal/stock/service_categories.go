package stock

import (
	"context"
	"fmt"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
)

// CategorySeed describes a category created at startup when missing.
type CategorySeed struct {
	Name        string
	Description string
}

// DefaultCategorySeeds are the categories a fresh installation starts with.
var DefaultCategorySeeds = []CategorySeed{
	{Name: "Training", Description: "Onboarding and safety training material"},
	{Name: "Operations", Description: "Procedures and manuals used in daily work"},
	{Name: "Safety", Description: "Safe driving and accident prevention"},
	{Name: "Regulations", Description: "Transport regulations and internal rules"},
	{Name: "Other", Description: "Everything else"},
}

// ListCategories returns categories ordered by name.
func (s *Service) ListCategories(ctx context.Context, req ListCategoriesRequest) ([]Category, error) {
	categories, err := s.store.ListCategories(ctx, BuildCategoryQuery(req))
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return categories, nil
}

// GetCategory returns the single category matching the id or name.
func (s *Service) GetCategory(ctx context.Context, req GetCategoryRequest) (*Category, error) {
	matches, err := s.store.FindCategories(ctx, CategoryLookup(req))
	if err != nil {
		return nil, errors.Wrap(err, "find category")
	}
	if len(matches) != 1 {
		return nil, newNotFoundError("category", notFoundMessage("category")).
			WithDetail("matches", len(matches))
	}
	return &matches[0], nil
}

// CreateCategory inserts a category. A duplicate name is a conflict.
func (s *Service) CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	category := Category{
		ID:          s.newID(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   s.clock(),
		CreatedBy:   req.CreatedBy,
	}

	var created *Category
	err := s.inTx(ctx, func(tx Tx) error {
		var err error
		created, err = tx.InsertCategory(ctx, category)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "create category")
	}
	return created, nil
}

// UpdateCategory applies a partial update. A rename re-points every file
// filed under the old name within the same transaction.
func (s *Service) UpdateCategory(ctx context.Context, req UpdateCategoryRequest) (*Category, error) {
	var updated *Category
	err := s.inTx(ctx, func(tx Tx) error {
		current, err := tx.LockCategory(ctx, CategoryLookup{ID: req.ID}, true)
		if err != nil {
			return err
		}
		updated, err = tx.UpdateCategory(ctx, req.ID, CategoryPatch{Name: req.Name, Description: req.Description})
		if err != nil {
			return err
		}
		if updated.Name != current.Name {
			moved, err := tx.RenameFileCategory(ctx, current.Name, updated.Name)
			if err != nil {
				return errors.Wrap(err, "re-point files to renamed category")
			}
			s.logger.Info("category renamed",
				zap.String("from", current.Name),
				zap.String("to", updated.Name),
				zap.Int64("files_moved", moved))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update category")
	}
	return updated, nil
}

// DeleteCategory removes a category no active file references.
func (s *Service) DeleteCategory(ctx context.Context, id string) (*Category, error) {
	var deleted *Category
	err := s.inTx(ctx, func(tx Tx) error {
		category, err := guardCategoryRemoval(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteCategory(ctx, id); err != nil {
			return err
		}
		deleted = category
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "delete category")
	}
	return deleted, nil
}

// SeedCategories creates each seed whose name is not taken yet and returns how many were created.
func (s *Service) SeedCategories(ctx context.Context, seeds []CategorySeed) (int, error) {
	created := 0
	for _, seed := range seeds {
		existing, err := s.store.FindCategories(ctx, CategoryLookup{Name: seed.Name})
		if err != nil {
			return created, errors.Wrap(err, fmt.Sprintf("find seed category %q", seed.Name))
		}
		if len(existing) > 0 {
			continue
		}

		desc := seed.Description
		if _, err := s.CreateCategory(ctx, CreateCategoryRequest{Name: seed.Name, Description: &desc}); err != nil {
			if IsCode(err, ErrCodeConflict) {
				continue
			}
			return created, errors.Wrap(err, fmt.Sprintf("seed category %q", seed.Name))
		}
		created++
	}
	return created, nil
}
