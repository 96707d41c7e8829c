package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pulselens/pulselens/pkg/db/pagination"
)

type RecordEventRequest struct {
	CompanyID         string         `json:"company_id"`
	ExternalCompanyID string         `json:"external_company_id"`
	EventType         string         `json:"event_type"`
	FeatureName       string         `json:"feature_name"`
	OccurredAt        time.Time      `json:"occurred_at"`
	Metadata          map[string]any `json:"metadata"`
}

// Key resolves the storage key for the event. Events without a company id
// fall back to the external identifier. The two namespaces are never
// merged: a caller mixing both for the same customer gets two distinct
// companies.
func (r RecordEventRequest) Key() string {
	if key := strings.TrimSpace(r.CompanyID); key != "" {
		return key
	}
	return strings.TrimSpace(r.ExternalCompanyID)
}

type BatchRecordResult struct {
	Index   int    `json:"index"`
	EventID string `json:"event_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type BatchRecordResponse struct {
	Recorded int                 `json:"recorded"`
	Failed   int                 `json:"failed"`
	Results  []BatchRecordResult `json:"results"`
}

type ListEventsRequest struct {
	CompanyID string `form:"company_id"`
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

type ListEventsResponse struct {
	pagination.PageInfo
	Events []UsageEvent `json:"events"`
}

type Service interface {
	Record(context.Context, RecordEventRequest) (*UsageEvent, error)
	RecordBatch(context.Context, []RecordEventRequest) (BatchRecordResponse, error)
	List(context.Context, ListEventsRequest) (ListEventsResponse, error)
	// Window returns all events for the company with occurred_at within
	// the trailing lookback window, in arbitrary order.
	Window(ctx context.Context, companyID string, lookbackDays int) ([]UsageEvent, error)
	// Oldest returns the timestamp of the company's earliest stored
	// event, or nil when the company has none.
	Oldest(ctx context.Context, companyID string) (*time.Time, error)
	Companies(context.Context) ([]string, error)
	Reset(ctx context.Context, companyID string) error
}

var (
	ErrMissingCompany   = errors.New("missing_company_id")
	ErrMissingEventType = errors.New("missing_event_type")
	ErrInvalidLookback  = errors.New("invalid_lookback_days")
)
