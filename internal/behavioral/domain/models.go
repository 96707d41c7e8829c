// Package domain defines the behavioral trend contract: regression-based
// usage classification over a fixed 12-week window.
package domain

import (
	"context"
	"time"
)

type Classification string

const (
	ClassNearAbandonment Classification = "near_abandonment"
	ClassSharpDecline    Classification = "sharp_decline"
	ClassSoftDecline     Classification = "soft_decline"
	ClassAcceleratingUse Classification = "accelerating_usage"
	ClassHealthyGrowth   Classification = "healthy_growth"
	ClassStabilizing     Classification = "stabilizing"
)

// Usage signature clusters, most specific first.
const (
	ClusterInactive      = "cluster_inactive"
	ClusterPowerStable   = "cluster_power_stable"
	ClusterPowerVolatile = "cluster_power_volatile"
	ClusterDeclining     = "cluster_declining"
	ClusterGrowing       = "cluster_growing"
	ClusterCoreSteady    = "cluster_core_steady"
	ClusterErratic       = "cluster_erratic"
	ClusterCasual        = "cluster_casual"
)

// Engagement cohorts ordered from dormant (rank 0) upward, derived from
// mean weekly event volume.
type Cohort string

const (
	CohortDormant   Cohort = "dormant"
	CohortAtRisk    Cohort = "at_risk"
	CohortCasual    Cohort = "casual"
	CohortActive    Cohort = "active"
	CohortPowerUser Cohort = "power_user"
)

type CohortDrift struct {
	PreviousCohort Cohort `json:"previous_cohort"`
	CurrentCohort  Cohort `json:"current_cohort"`
	DriftDetected  bool   `json:"drift_detected"`
}

type FeatureTrend struct {
	FeatureName string  `json:"feature_name"`
	TotalEvents int     `json:"total_events"`
	Slope       float64 `json:"slope"`
	Direction   string  `json:"direction"` // up, down, stable
}

// UsageTrend is the full behavioral result for one company. Classification
// is a pure function of the event set and the injected clock.
type UsageTrend struct {
	CompanyID        string         `json:"company_id"`
	TrendScore       int            `json:"trend_score"`
	Classification   Classification `json:"classification"`
	VolatilityIndex  float64        `json:"volatility_index"`
	TrendDirection   float64        `json:"trend_direction"` // regression slope
	TrendStrength    float64        `json:"trend_strength"`
	UsageSignature   string         `json:"usage_signature"`
	CohortDrift      CohortDrift    `json:"cohort_drift"`
	WeeklyDeltas     []float64      `json:"weekly_deltas"`
	MovingAverage    float64        `json:"moving_average"`
	FeatureBreakdown []FeatureTrend `json:"feature_breakdown"`
	CalculatedAt     time.Time      `json:"calculated_at"`
}

type Service interface {
	Analyze(ctx context.Context, companyID string) (*UsageTrend, error)
	// BatchAnalyze returns one result per company id, in input order.
	BatchAnalyze(ctx context.Context, companyIDs []string) ([]UsageTrend, error)
}
