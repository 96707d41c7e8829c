package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pulselens/pulselens/internal/clock"
	"github.com/pulselens/pulselens/internal/config"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
	obsmetrics "github.com/pulselens/pulselens/internal/observability/metrics"
	"github.com/pulselens/pulselens/internal/renewal/domain"
	"github.com/pulselens/pulselens/internal/trend"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Fixed factor weights; they sum to 1.0.
const (
	weightFrequency   = 0.25
	weightAdoption    = 0.25
	weightTrend       = 0.20
	weightRecency     = 0.15
	weightConsistency = 0.15
)

const maxRecommendations = 5

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	EventSvc eventdomain.Service
	Clock    clock.Clock
	Scoring  *config.ScoringConfigHolder
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	eventSvc eventdomain.Service
	clock    clock.Clock
	scoring  *config.ScoringConfigHolder
	metrics  *obsmetrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:      p.Log.Named("renewal.service"),
		eventSvc: p.EventSvc,
		clock:    p.Clock,
		scoring:  p.Scoring,
		metrics:  p.Metrics,
	}
}

func (s *Service) Score(ctx context.Context, companyID string) (*domain.HealthScore, error) {
	started := s.clock.Now()

	lookback := s.scoring.Current().LookbackDays
	events, err := s.eventSvc.Window(ctx, companyID, lookback)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	buckets := trend.BuildWeeklyBuckets(events, now)
	features := trend.BuildFeatureUsage(events)

	factors := []domain.ScoreFactor{
		frequencyFactor(len(events)),
		adoptionFactor(len(features)),
		trendFactor(buckets),
		recencyFactor(events, now),
		consistencyFactor(buckets),
	}

	var weighted float64
	for _, factor := range factors {
		weighted += factor.Value * factor.Weight
	}
	score := int(math.Round(weighted))
	risk := riskLevel(score)

	result := &domain.HealthScore{
		CompanyID:       companyID,
		Score:           score,
		RiskLevel:       risk,
		Factors:         factors,
		Recommendations: buildRecommendations(risk, factors),
		CalculatedAt:    now,
	}

	if s.metrics != nil {
		s.metrics.RecordScore(ctx, "renewal", s.clock.Now().Sub(started))
	}
	return result, nil
}

func (s *Service) BatchScore(ctx context.Context, companyIDs []string) ([]domain.HealthScore, error) {
	results := make([]domain.HealthScore, 0, len(companyIDs))
	for _, companyID := range companyIDs {
		score, err := s.Score(ctx, companyID)
		if err != nil {
			return nil, err
		}
		results = append(results, *score)
	}
	return results, nil
}

func frequencyFactor(eventCount int) domain.ScoreFactor {
	var value float64
	switch {
	case eventCount >= 100:
		value = 100
	case eventCount >= 50:
		value = 80
	case eventCount >= 20:
		value = 60
	case eventCount >= 10:
		value = 40
	case eventCount >= 5:
		value = 20
	case eventCount > 0:
		value = 10
	}
	return newFactor("frequency", value, weightFrequency,
		fmt.Sprintf("%d events in the lookback window", eventCount))
}

func adoptionFactor(featureCount int) domain.ScoreFactor {
	var value float64
	switch {
	case featureCount >= 10:
		value = 100
	case featureCount >= 7:
		value = 80
	case featureCount >= 5:
		value = 60
	case featureCount >= 3:
		value = 40
	case featureCount >= 1:
		value = 20
	}
	return newFactor("adoption", value, weightAdoption,
		fmt.Sprintf("%d distinct features in use", featureCount))
}

func trendFactor(buckets []trend.WeeklyBucket) domain.ScoreFactor {
	recent := buckets
	if len(recent) > 4 {
		recent = recent[len(recent)-4:]
	}

	var increasing, decreasing int
	for _, bucket := range recent {
		switch bucket.Direction {
		case trend.DirectionIncreasing:
			increasing++
		case trend.DirectionDecreasing:
			decreasing++
		}
	}

	value := 50.0
	switch {
	case increasing >= 3:
		value = 100
	case increasing >= 2:
		value = 80
	case decreasing <= 1 && increasing >= 1:
		value = 60
	case decreasing >= 3:
		value = 10
	case decreasing >= 2:
		value = 30
	}
	return newFactor("trend", value, weightTrend,
		fmt.Sprintf("%d of the last %d weeks increasing, %d decreasing", increasing, len(recent), decreasing))
}

func recencyFactor(events []eventdomain.UsageEvent, now time.Time) domain.ScoreFactor {
	if len(events) == 0 {
		return newFactor("recency", 0, weightRecency, "no recorded events")
	}

	latest := events[0].OccurredAt
	for _, event := range events {
		if event.OccurredAt.After(latest) {
			latest = event.OccurredAt
		}
	}
	days := now.Sub(latest).Hours() / 24

	var value float64
	switch {
	case days <= 1:
		value = 100
	case days <= 3:
		value = 90
	case days <= 7:
		value = 75
	case days <= 14:
		value = 50
	case days <= 30:
		value = 25
	default:
		value = 10
	}
	return newFactor("recency", value, weightRecency,
		fmt.Sprintf("last event %.0f days ago", math.Floor(days)))
}

func consistencyFactor(buckets []trend.WeeklyBucket) domain.ScoreFactor {
	if len(buckets) < 2 {
		return newFactor("consistency", 50, weightConsistency, "not enough weekly data")
	}

	counts := trend.Counts(buckets)
	if trend.Mean(counts) == 0 {
		return newFactor("consistency", 0, weightConsistency, "no weekly activity")
	}

	cv := trend.CoefficientOfVariation(counts)
	var value float64
	switch {
	case cv <= 0.2:
		value = 100
	case cv <= 0.4:
		value = 80
	case cv <= 0.6:
		value = 60
	case cv <= 0.8:
		value = 40
	default:
		value = 20
	}
	return newFactor("consistency", value, weightConsistency,
		fmt.Sprintf("weekly usage variation %.2f", cv))
}

func newFactor(name string, value, weight float64, description string) domain.ScoreFactor {
	return domain.ScoreFactor{
		Name:        name,
		Value:       value,
		Weight:      weight,
		Impact:      impactOf(value),
		Description: description,
	}
}

func impactOf(value float64) domain.Impact {
	switch {
	case value < 40:
		return domain.ImpactNegative
	case value < 70:
		return domain.ImpactNeutral
	default:
		return domain.ImpactPositive
	}
}

func riskLevel(score int) domain.RiskLevel {
	switch {
	case score >= 75:
		return domain.RiskLow
	case score >= 50:
		return domain.RiskMedium
	case score >= 25:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

var factorRecommendations = map[string][]string{
	"frequency": {
		"Usage frequency is low; schedule a check-in to understand blockers.",
		"Share workflow guides that make the product part of the team's routine.",
	},
	"adoption": {
		"Feature adoption is narrow; offer a guided walkthrough of unused features.",
	},
	"trend": {
		"Usage is trending down; investigate recent changes in the account's workflow.",
	},
	"recency": {
		"No recent activity; reach out before the account goes dormant.",
	},
	"consistency": {
		"Usage is irregular; help the team establish a recurring workflow.",
	},
}

func buildRecommendations(risk domain.RiskLevel, factors []domain.ScoreFactor) []string {
	var recs []string
	switch risk {
	case domain.RiskCritical:
		recs = append(recs, "Urgent: renewal at risk, schedule an executive business review immediately.")
	case domain.RiskHigh:
		recs = append(recs, "High risk: assign a customer-success follow-up this week.")
	}

	for _, factor := range factors {
		if factor.Impact != domain.ImpactNegative {
			continue
		}
		recs = append(recs, factorRecommendations[factor.Name]...)
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}
