// Package domain defines milestone-based onboarding tracking. The
// milestone set is a fixed template; per-company instances are derived
// from events, never created independently.
package domain

import (
	"context"
	"time"
)

type Status string

const (
	StatusOnTrack Status = "on_track"
	StatusBehind  Status = "behind"
	StatusAtRisk  Status = "at_risk"
	StatusBlocked Status = "blocked"
)

// MilestoneTemplate is one entry of the fixed activation template.
type MilestoneTemplate struct {
	Name          string
	ExpectedByDay int
	IsAhaMoment   bool
	Weight        float64
}

// Milestone is a per-company instance of a template entry.
type Milestone struct {
	Name          string     `json:"name"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ExpectedByDay int        `json:"expected_by_day"`
	ExpectedDate  time.Time  `json:"expected_date"`
	IsAhaMoment   bool       `json:"is_aha_moment"`
	Weight        float64    `json:"weight"`
}

// HealthScore aggregates milestone completion and derived timing metrics.
type HealthScore struct {
	CompanyID              string      `json:"company_id"`
	Score                  int         `json:"score"`
	Status                 Status      `json:"status"`
	MilestoneCoverageScore float64     `json:"milestone_coverage_score"`
	Milestones             []Milestone `json:"milestones"`
	StartedAt              time.Time   `json:"started_at"`
	DaysSinceOnboarding    int         `json:"days_since_onboarding"`
	TimeToFirstValueDays   *int        `json:"time_to_first_value_days,omitempty"`
	Forecast               float64     `json:"forecast"`
	ActivityTrend          float64     `json:"activity_trend"`
	Recommendations        []string    `json:"recommendations"`
	CalculatedAt           time.Time   `json:"calculated_at"`
}

// OnboardingStart persists a company's onboarding start date, whether
// supplied externally or inferred from the earliest event.
type OnboardingStart struct {
	CompanyID string    `gorm:"primaryKey;type:text" json:"company_id"`
	StartedAt time.Time `gorm:"not null" json:"started_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (OnboardingStart) TableName() string { return "onboarding_starts" }

type Service interface {
	// Score computes the onboarding health score. An explicit startedAt
	// overrides the stored or inferred start date.
	Score(ctx context.Context, companyID string, startedAt *time.Time) (*HealthScore, error)
	// BatchScore returns one result per company id, in input order.
	BatchScore(ctx context.Context, companyIDs []string) ([]HealthScore, error)
	SetStartDate(ctx context.Context, companyID string, startedAt time.Time) error
}
