package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pulselens/pulselens/internal/event/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{db: db}
}

func (r *repo) Create(ctx context.Context, event *domain.UsageEvent) error {
	if event == nil {
		return gorm.ErrInvalidData
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repo) FindSince(ctx context.Context, companyID string, since time.Time) ([]domain.UsageEvent, error) {
	var items []domain.UsageEvent
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND occurred_at >= ?", companyID, since).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindPage(ctx context.Context, companyID string, afterID string, limit int) ([]*domain.UsageEvent, error) {
	stmt := r.db.WithContext(ctx).Model(&domain.UsageEvent{})
	if companyID != "" {
		stmt = stmt.Where("company_id = ?", companyID)
	}
	if afterID != "" {
		cursor, err := snowflake.ParseString(afterID)
		if err != nil {
			return nil, gorm.ErrInvalidData
		}
		stmt = stmt.Where("id > ?", cursor)
	}

	var items []*domain.UsageEvent
	// Fetch one extra row so the caller can detect a next page.
	err := stmt.Order("id ASC").Limit(limit + 1).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) OldestEventTime(ctx context.Context, companyID string) (*time.Time, error) {
	var event domain.UsageEvent
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("occurred_at ASC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	occurred := event.OccurredAt
	return &occurred, nil
}

func (r *repo) ListCompanyIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&domain.UsageEvent{}).
		Distinct("company_id").
		Order("company_id ASC").
		Pluck("company_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) DeleteByCompany(ctx context.Context, companyID string) error {
	return r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Delete(&domain.UsageEvent{}).Error
}
