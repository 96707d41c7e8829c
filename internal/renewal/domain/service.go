package domain

import "context"

type Service interface {
	Score(ctx context.Context, companyID string) (*HealthScore, error)
	// BatchScore returns one result per company id, in input order.
	BatchScore(ctx context.Context, companyIDs []string) ([]HealthScore, error)
}
