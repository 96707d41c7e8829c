package service

import (
	"context"
	"math"
	"sort"
	"time"

	behavioraldomain "github.com/pulselens/pulselens/internal/behavioral/domain"
	"github.com/pulselens/pulselens/internal/clock"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
	obsmetrics "github.com/pulselens/pulselens/internal/observability/metrics"
	"github.com/pulselens/pulselens/internal/trend"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	histogramWeeks   = 12
	recentWeeks      = 4
	lookbackDays     = 90
	breakdownTopN    = 10
	featureSlopeBand = 0.3
)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	EventSvc eventdomain.Service
	Clock    clock.Clock
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	eventSvc eventdomain.Service
	clock    clock.Clock
	metrics  *obsmetrics.Metrics
}

func NewService(p ServiceParam) behavioraldomain.Service {
	return &Service{
		log:      p.Log.Named("behavioral.service"),
		eventSvc: p.EventSvc,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

func (s *Service) Analyze(ctx context.Context, companyID string) (*behavioraldomain.UsageTrend, error) {
	started := s.clock.Now()

	events, err := s.eventSvc.Window(ctx, companyID, lookbackDays)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	weekly := weeklyHistogram(events, now)

	slope, r2 := trend.LinearRegression(weekly)
	overallMean := trend.Mean(weekly)
	recentMean := trend.Mean(weekly[histogramWeeks-recentWeeks:])
	volatility := volatilityIndex(weekly)

	result := &behavioraldomain.UsageTrend{
		CompanyID:        companyID,
		TrendScore:       trendScore(slope, r2, volatility, recentMean, overallMean),
		Classification:   classify(slope, volatility, recentMean, overallMean),
		VolatilityIndex:  volatility,
		TrendDirection:   slope,
		TrendStrength:    trendStrength(slope, overallMean),
		UsageSignature:   usageSignature(overallMean, volatility, slope),
		CohortDrift:      cohortDrift(weekly),
		WeeklyDeltas:     weeklyDeltas(weekly),
		MovingAverage:    movingAverage(events, now),
		FeatureBreakdown: featureBreakdown(events, now),
		CalculatedAt:     now,
	}

	if s.metrics != nil {
		s.metrics.RecordScore(ctx, "behavioral", s.clock.Now().Sub(started))
	}
	return result, nil
}

func (s *Service) BatchAnalyze(ctx context.Context, companyIDs []string) ([]behavioraldomain.UsageTrend, error) {
	results := make([]behavioraldomain.UsageTrend, 0, len(companyIDs))
	for _, companyID := range companyIDs {
		result, err := s.Analyze(ctx, companyID)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// weeklyHistogram distributes events into a fixed 12-slot series where
// index 11 is the current week: slot = 11 - floor((now-t)/7d). Events
// older than 12 weeks are dropped; timestamps ahead of now land in the
// current week.
func weeklyHistogram(events []eventdomain.UsageEvent, now time.Time) []float64 {
	weekly := make([]float64, histogramWeeks)
	for _, event := range events {
		age := int(math.Floor(now.Sub(event.OccurredAt).Hours() / (24 * 7)))
		if age >= histogramWeeks {
			continue
		}
		if age < 0 {
			age = 0
		}
		weekly[histogramWeeks-1-age]++
	}
	return weekly
}

func volatilityIndex(weekly []float64) float64 {
	if trend.Mean(weekly) == 0 {
		return 0
	}
	cv := trend.CoefficientOfVariation(weekly)
	return math.Min(cv, 1.0)
}

func trendStrength(slope, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return math.Min(math.Abs(slope)/mean*100, 100)
}

// weeklyDeltas returns the week-over-week percentage change; length is
// always one less than the histogram. A 0-to-positive transition counts
// as +100%, 0-to-0 as 0%.
func weeklyDeltas(weekly []float64) []float64 {
	deltas := make([]float64, 0, len(weekly)-1)
	for i := 1; i < len(weekly); i++ {
		prev := weekly[i-1]
		curr := weekly[i]
		switch {
		case prev == 0 && curr > 0:
			deltas = append(deltas, 100)
		case prev == 0:
			deltas = append(deltas, 0)
		default:
			deltas = append(deltas, (curr-prev)/prev*100)
		}
	}
	return deltas
}

// movingAverage compares the last-7-day daily event rate against the
// daily rate over the preceding 83 days, as a percentage.
func movingAverage(events []eventdomain.UsageEvent, now time.Time) float64 {
	cutoff := now.AddDate(0, 0, -7)
	var recent, baseline float64
	for _, event := range events {
		if event.OccurredAt.After(cutoff) {
			recent++
		} else {
			baseline++
		}
	}

	recentRate := recent / 7
	baselineRate := baseline / 83
	if baselineRate == 0 {
		if recentRate > 0 {
			return 100
		}
		return 0
	}
	return recentRate / baselineRate * 100
}

// classify applies the decline/growth cascade in priority order.
func classify(slope, volatility, recentMean, overallMean float64) behavioraldomain.Classification {
	switch {
	case recentMean < 2 && overallMean < 5:
		return behavioraldomain.ClassNearAbandonment
	case slope < -2 && recentMean < 0.5*overallMean:
		return behavioraldomain.ClassSharpDecline
	case slope < -0.5 && recentMean < 0.8*overallMean:
		return behavioraldomain.ClassSoftDecline
	case slope > 2 && recentMean > 1.3*overallMean:
		return behavioraldomain.ClassAcceleratingUse
	case slope > 0.5 && volatility < 0.5:
		return behavioraldomain.ClassHealthyGrowth
	default:
		return behavioraldomain.ClassStabilizing
	}
}

func trendScore(slope, r2, volatility, recentMean, overallMean float64) int {
	score := 50.0
	score += clamp(slope*10, -30, 30)
	score -= 20 * volatility
	if overallMean > 0 {
		score += clamp((recentMean/overallMean-1)*20, -20, 20)
	}
	score += r2 * 10
	return int(math.Round(clamp(score, 0, 100)))
}

// usageSignature assigns one of eight fixed clusters via an ordered rule
// cascade over (mean weekly volume, volatility, slope).
func usageSignature(mean, volatility, slope float64) string {
	switch {
	case mean < 1:
		return behavioraldomain.ClusterInactive
	case mean >= 20 && volatility < 0.3:
		return behavioraldomain.ClusterPowerStable
	case mean >= 20:
		return behavioraldomain.ClusterPowerVolatile
	case slope < -1:
		return behavioraldomain.ClusterDeclining
	case slope > 1:
		return behavioraldomain.ClusterGrowing
	case mean >= 5 && volatility < 0.5:
		return behavioraldomain.ClusterCoreSteady
	case volatility >= 0.7:
		return behavioraldomain.ClusterErratic
	default:
		return behavioraldomain.ClusterCasual
	}
}

// cohortDrift compares weeks 0-7 against weeks 8-11 of the histogram.
// The split is fixed, not sliding.
func cohortDrift(weekly []float64) behavioraldomain.CohortDrift {
	previous := cohortOf(trend.Mean(weekly[:8]))
	current := cohortOf(trend.Mean(weekly[8:]))
	return behavioraldomain.CohortDrift{
		PreviousCohort: previous,
		CurrentCohort:  current,
		DriftDetected:  cohortRank(current) < cohortRank(previous),
	}
}

func cohortOf(meanWeekly float64) behavioraldomain.Cohort {
	switch {
	case meanWeekly >= 20:
		return behavioraldomain.CohortPowerUser
	case meanWeekly >= 10:
		return behavioraldomain.CohortActive
	case meanWeekly >= 5:
		return behavioraldomain.CohortCasual
	case meanWeekly >= 1:
		return behavioraldomain.CohortAtRisk
	default:
		return behavioraldomain.CohortDormant
	}
}

func cohortRank(c behavioraldomain.Cohort) int {
	switch c {
	case behavioraldomain.CohortPowerUser:
		return 4
	case behavioraldomain.CohortActive:
		return 3
	case behavioraldomain.CohortCasual:
		return 2
	case behavioraldomain.CohortAtRisk:
		return 1
	default:
		return 0
	}
}

// featureBreakdown regresses each feature's own 12-week histogram and
// returns the top features by total usage.
func featureBreakdown(events []eventdomain.UsageEvent, now time.Time) []behavioraldomain.FeatureTrend {
	byFeature := make(map[string][]eventdomain.UsageEvent)
	for _, event := range events {
		if event.FeatureName == "" {
			continue
		}
		byFeature[event.FeatureName] = append(byFeature[event.FeatureName], event)
	}

	breakdown := make([]behavioraldomain.FeatureTrend, 0, len(byFeature))
	for name, featureEvents := range byFeature {
		weekly := weeklyHistogram(featureEvents, now)
		slope, _ := trend.LinearRegression(weekly)

		direction := "stable"
		switch {
		case slope > featureSlopeBand:
			direction = "up"
		case slope < -featureSlopeBand:
			direction = "down"
		}

		total := 0
		for _, count := range weekly {
			total += int(count)
		}
		breakdown = append(breakdown, behavioraldomain.FeatureTrend{
			FeatureName: name,
			TotalEvents: total,
			Slope:       slope,
			Direction:   direction,
		})
	}

	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].TotalEvents != breakdown[j].TotalEvents {
			return breakdown[i].TotalEvents > breakdown[j].TotalEvents
		}
		return breakdown[i].FeatureName < breakdown[j].FeatureName
	})
	if len(breakdown) > breakdownTopN {
		breakdown = breakdown[:breakdownTopN]
	}
	return breakdown
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
