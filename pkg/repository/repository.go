package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository is a minimal generic gorm-backed store for keyed lookup
// tables (seat licenses, onboarding starts). Domain-specific queries
// live in each domain's own repository.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T) ([]*T, error)
	FindOne(ctx context.Context, query *T) (*T, error)
	Create(ctx context.Context, resource *T) error
	Save(ctx context.Context, resource *T) error
	Delete(ctx context.Context, query *T) error
	Count(ctx context.Context, query *T) (int64, error)
}
