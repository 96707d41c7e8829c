package service

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pulselens/pulselens/internal/clock"
	"github.com/pulselens/pulselens/internal/config"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
	eventrepository "github.com/pulselens/pulselens/internal/event/repository"
	eventservice "github.com/pulselens/pulselens/internal/event/service"
	"github.com/pulselens/pulselens/internal/renewal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServices(t *testing.T, fake *clock.FakeClock) (domain.Service, eventdomain.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&eventdomain.UsageEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	eventSvc := eventservice.NewService(eventservice.ServiceParam{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  eventrepository.Provide(db),
		Clock: fake,
	})

	renewalSvc := NewService(ServiceParam{
		Log:      zap.NewNop(),
		EventSvc: eventSvc,
		Clock:    fake,
		Scoring:  config.NewStaticScoringConfigHolder(config.DefaultScoringConfig()),
	})
	return renewalSvc, eventSvc
}

func seedEvents(t *testing.T, svc eventdomain.Service, companyID string, times []time.Time, features []string) {
	t.Helper()
	for i, at := range times {
		feature := ""
		if len(features) > 0 {
			feature = features[i%len(features)]
		}
		_, err := svc.Record(context.Background(), eventdomain.RecordEventRequest{
			CompanyID:   companyID,
			EventType:   "feature_used",
			FeatureName: feature,
			OccurredAt:  at,
		})
		require.NoError(t, err)
	}
}

func TestScore_ZeroEventsFloor(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestServices(t, fake)

	result, err := svc.Score(context.Background(), "ghost")
	require.NoError(t, err)

	assert.LessOrEqual(t, result.Score, 25)
	assert.Equal(t, domain.RiskCritical, result.RiskLevel)
	require.Len(t, result.Factors, 5)
	assert.NotEmpty(t, result.Recommendations)
}

func TestScore_WeightedSumEquality(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	var times []time.Time
	for day := 0; day < 60; day += 2 {
		times = append(times, now.AddDate(0, 0, -day))
	}
	seedEvents(t, eventSvc, "acme", times, []string{"reports", "dashboards", "exports"})

	result, err := svc.Score(context.Background(), "acme")
	require.NoError(t, err)

	var weightSum, weighted float64
	for _, factor := range result.Factors {
		weightSum += factor.Weight
		weighted += factor.Value * factor.Weight
		assert.GreaterOrEqual(t, factor.Value, 0.0)
		assert.LessOrEqual(t, factor.Value, 100.0)
	}
	assert.InDelta(t, 1.0, weightSum, 1e-9)
	assert.Equal(t, int(math.Round(weighted)), result.Score)
}

func TestScore_HealthyCompanyLowRisk(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	features := []string{"reports", "dashboards", "exports", "alerts", "api", "billing", "admin", "search", "imports", "audit"}
	var times []time.Time
	// Steady daily usage over the last ten weeks, two events per day.
	for day := 0; day < 70; day++ {
		times = append(times, now.AddDate(0, 0, -day), now.AddDate(0, 0, -day).Add(time.Hour))
	}
	seedEvents(t, eventSvc, "acme", times, features)

	result, err := svc.Score(context.Background(), "acme")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Score, 75)
	assert.Equal(t, domain.RiskLow, result.RiskLevel)
}

func TestScore_RecencyFloors(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	// Activity stopped 45 days ago.
	var times []time.Time
	for day := 45; day < 60; day++ {
		times = append(times, now.AddDate(0, 0, -day))
	}
	seedEvents(t, eventSvc, "stale", times, nil)

	result, err := svc.Score(context.Background(), "stale")
	require.NoError(t, err)

	var recency *domain.ScoreFactor
	for i := range result.Factors {
		if result.Factors[i].Name == "recency" {
			recency = &result.Factors[i]
		}
	}
	require.NotNil(t, recency)
	assert.Equal(t, 10.0, recency.Value)
	assert.Equal(t, domain.ImpactNegative, recency.Impact)
}

func TestBatchScore_PreservesOrder(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	companyIDs := []string{"c3", "c1", "c2"}
	for _, companyID := range companyIDs {
		seedEvents(t, eventSvc, companyID, []time.Time{now.AddDate(0, 0, -1)}, nil)
	}

	results, err := svc.BatchScore(context.Background(), companyIDs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, companyID := range companyIDs {
		assert.Equal(t, companyID, results[i].CompanyID, fmt.Sprintf("result %d", i))
	}
}

func TestScore_Idempotent(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	seedEvents(t, eventSvc, "acme", []time.Time{now.AddDate(0, 0, -2), now.AddDate(0, 0, -9)}, []string{"reports"})

	first, err := svc.Score(context.Background(), "acme")
	require.NoError(t, err)
	second, err := svc.Score(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.RiskLevel, second.RiskLevel)
	assert.Equal(t, first.Factors, second.Factors)
}
