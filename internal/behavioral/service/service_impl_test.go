package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	behavioraldomain "github.com/pulselens/pulselens/internal/behavioral/domain"
	"github.com/pulselens/pulselens/internal/clock"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
	eventrepository "github.com/pulselens/pulselens/internal/event/repository"
	eventservice "github.com/pulselens/pulselens/internal/event/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServices(t *testing.T, fake *clock.FakeClock) (behavioraldomain.Service, eventdomain.Service) {
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

	behavioralSvc := NewService(ServiceParam{
		Log:      zap.NewNop(),
		EventSvc: eventSvc,
		Clock:    fake,
	})
	return behavioralSvc, eventSvc
}

func record(t *testing.T, svc eventdomain.Service, companyID, feature string, at time.Time) {
	t.Helper()
	_, err := svc.Record(context.Background(), eventdomain.RecordEventRequest{
		CompanyID:   companyID,
		EventType:   "feature_used",
		FeatureName: feature,
		OccurredAt:  at,
	})
	require.NoError(t, err)
}

func TestAnalyze_ZeroEventsFloor(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC))
	svc, _ := newTestServices(t, fake)

	result, err := svc.Analyze(context.Background(), "ghost")
	require.NoError(t, err)

	assert.Equal(t, behavioraldomain.ClassNearAbandonment, result.Classification)
	assert.Equal(t, behavioraldomain.ClusterInactive, result.UsageSignature)
	assert.Equal(t, 0.0, result.VolatilityIndex)
	assert.Equal(t, 0.0, result.TrendDirection)
	assert.Empty(t, result.FeatureBreakdown)
	assert.Len(t, result.WeeklyDeltas, 11)
}

func TestAnalyze_WeeklyDeltasLength(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	for week := 0; week < 6; week++ {
		record(t, eventSvc, "acme", "reports", now.AddDate(0, 0, -7*week))
	}

	result, err := svc.Analyze(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, result.WeeklyDeltas, 11)
}

func TestAnalyze_GrowthClassification(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	// Event volume ramps up sharply toward the present.
	for week := 0; week < 12; week++ {
		perWeek := (11 - week) * 4
		for i := 0; i < perWeek; i++ {
			record(t, eventSvc, "acme", "reports", now.AddDate(0, 0, -7*week).Add(-time.Duration(i)*time.Minute))
		}
	}

	result, err := svc.Analyze(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, behavioraldomain.ClassAcceleratingUse, result.Classification)
	assert.Greater(t, result.TrendDirection, 2.0)
	assert.Greater(t, result.TrendScore, 50)
	assert.False(t, result.CohortDrift.DriftDetected)
}

func TestAnalyze_DeclineAndCohortDrift(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	// Heavy usage in the older eight weeks, almost nothing recently.
	for week := 4; week < 12; week++ {
		for i := 0; i < 25; i++ {
			record(t, eventSvc, "fading", "reports", now.AddDate(0, 0, -7*week).Add(time.Duration(i)*time.Minute))
		}
	}
	record(t, eventSvc, "fading", "reports", now.AddDate(0, 0, -2))

	result, err := svc.Analyze(context.Background(), "fading")
	require.NoError(t, err)

	assert.Less(t, result.TrendDirection, -0.5)
	assert.True(t, result.CohortDrift.DriftDetected)
	assert.Contains(t, []behavioraldomain.Classification{
		behavioraldomain.ClassSharpDecline,
		behavioraldomain.ClassSoftDecline,
	}, result.Classification)
}

func TestAnalyze_ScoreBounds(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	for i := 0; i < 40; i++ {
		record(t, eventSvc, "acme", "reports", now.AddDate(0, 0, -i*2))
	}

	result, err := svc.Analyze(context.Background(), "acme")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.TrendScore, 0)
	assert.LessOrEqual(t, result.TrendScore, 100)
	assert.GreaterOrEqual(t, result.VolatilityIndex, 0.0)
	assert.LessOrEqual(t, result.VolatilityIndex, 1.0)
	assert.LessOrEqual(t, result.TrendStrength, 100.0)
}

func TestAnalyze_FeatureBreakdownTopTen(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	features := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for i, feature := range features {
		for n := 0; n <= i; n++ {
			record(t, eventSvc, "acme", feature, now.AddDate(0, 0, -n%14))
		}
	}

	result, err := svc.Analyze(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, result.FeatureBreakdown, 10)
	// Most-used feature first.
	assert.Equal(t, "l", result.FeatureBreakdown[0].FeatureName)
}

func TestBatchAnalyze_PreservesOrder(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc, eventSvc := newTestServices(t, fake)

	record(t, eventSvc, "c2", "reports", now.AddDate(0, 0, -1))

	results, err := svc.BatchAnalyze(context.Background(), []string{"c2", "c1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c2", results[0].CompanyID)
	assert.Equal(t, "c1", results[1].CompanyID)
}
