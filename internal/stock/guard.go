package stock

import (
	"context"
	"fmt"

	errors "github.com/Laisky/errors/v2"
)

// guardCategoryRemoval locks the category exclusively and rejects removal while
// active files still reference it. It must run inside the deleting transaction.
func guardCategoryRemoval(ctx context.Context, tx Tx, id string) (*Category, error) {
	category, err := tx.LockCategory(ctx, CategoryLookup{ID: id}, true)
	if err != nil {
		return nil, errors.Wrap(err, "lock category")
	}

	count, err := tx.CountActiveFiles(ctx, category.Name)
	if err != nil {
		return nil, errors.Wrap(err, "count active files")
	}
	if count > 0 {
		return nil, NewError(ErrCodeConflict,
			fmt.Sprintf("Cannot delete category: %d files are still using this category", count)).
			WithDetail("blocking_file_count", count).
			WithDetail("category", category.Name)
	}

	return category, nil
}

// guardCategoryReference holds a shared lock on the named category so a
// concurrent removal cannot commit while the referencing write is in flight.
func guardCategoryReference(ctx context.Context, tx Tx, name string) error {
	if _, err := tx.LockCategory(ctx, CategoryLookup{Name: name}, false); err != nil {
		if IsCode(err, ErrCodeNotFound) {
			return newNotFoundError("category", fmt.Sprintf("Category %q does not exist", name)).
				WithDetail("category", name)
		}
		return errors.Wrap(err, "lock referenced category")
	}
	return nil
}
