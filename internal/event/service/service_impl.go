package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/pulselens/pulselens/internal/clock"
	"github.com/pulselens/pulselens/internal/event/domain"
	obsmetrics "github.com/pulselens/pulselens/internal/observability/metrics"
	"github.com/pulselens/pulselens/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
	maxLookbackDays = 365
)

type ServiceParam struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:     p.Log.Named("event.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   p.Clock,
		metrics: p.Metrics,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordEventRequest) (*domain.UsageEvent, error) {
	key := req.Key()
	if key == "" {
		return nil, domain.ErrMissingCompany
	}
	if strings.TrimSpace(req.EventType) == "" {
		return nil, domain.ErrMissingEventType
	}

	now := s.clock.Now()
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}

	event := &domain.UsageEvent{
		ID:          s.genID.Generate(),
		CompanyID:   key,
		EventType:   strings.TrimSpace(req.EventType),
		FeatureName: strings.TrimSpace(req.FeatureName),
		OccurredAt:  occurredAt.UTC(),
		CreatedAt:   now,
	}
	if req.Metadata != nil {
		event.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordEventIngest(ctx, event.EventType)
	}

	return event, nil
}

// RecordBatch records events one by one; a bad item never fails the batch.
func (s *Service) RecordBatch(ctx context.Context, reqs []domain.RecordEventRequest) (domain.BatchRecordResponse, error) {
	resp := domain.BatchRecordResponse{
		Results: make([]domain.BatchRecordResult, 0, len(reqs)),
	}
	for i, req := range reqs {
		result := domain.BatchRecordResult{Index: i}
		event, err := s.Record(ctx, req)
		if err != nil {
			result.Error = err.Error()
			resp.Failed++
		} else {
			result.EventID = event.ID.String()
			resp.Recorded++
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListEventsRequest) (domain.ListEventsResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	afterID := ""
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListEventsResponse{}, err
		}
		afterID = cursor.ID
	}

	items, err := s.repo.FindPage(ctx, strings.TrimSpace(req.CompanyID), afterID, pageSize)
	if err != nil {
		return domain.ListEventsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(event *domain.UsageEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        event.ID.String(),
			CreatedAt: event.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	events := make([]domain.UsageEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, *item)
	}

	resp := domain.ListEventsResponse{Events: events}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Window(ctx context.Context, companyID string, lookbackDays int) ([]domain.UsageEvent, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return nil, domain.ErrMissingCompany
	}
	if lookbackDays <= 0 || lookbackDays > maxLookbackDays {
		return nil, domain.ErrInvalidLookback
	}

	since := s.clock.Now().AddDate(0, 0, -lookbackDays)
	return s.repo.FindSince(ctx, companyID, since)
}

func (s *Service) Oldest(ctx context.Context, companyID string) (*time.Time, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return nil, domain.ErrMissingCompany
	}
	return s.repo.OldestEventTime(ctx, companyID)
}

func (s *Service) Companies(ctx context.Context) ([]string, error) {
	return s.repo.ListCompanyIDs(ctx)
}

func (s *Service) Reset(ctx context.Context, companyID string) error {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return domain.ErrMissingCompany
	}
	s.log.Info("deleting company events", zap.String("company_id", companyID))
	return s.repo.DeleteByCompany(ctx, companyID)
}
