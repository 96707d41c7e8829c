package domain

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, event *UsageEvent) error
	FindSince(ctx context.Context, companyID string, since time.Time) ([]UsageEvent, error)
	FindPage(ctx context.Context, companyID string, afterID string, limit int) ([]*UsageEvent, error)
	OldestEventTime(ctx context.Context, companyID string) (*time.Time, error)
	ListCompanyIDs(ctx context.Context) ([]string, error)
	DeleteByCompany(ctx context.Context, companyID string) error
}
