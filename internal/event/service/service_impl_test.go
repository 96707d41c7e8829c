package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/pulselens/pulselens/internal/clock"
	"github.com/pulselens/pulselens/internal/event/domain"
	"github.com/pulselens/pulselens/internal/event/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, fake *clock.FakeClock) domain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.UsageEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParam{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(db),
		Clock: fake,
	})
}

func TestRecord_Validation(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.Record(ctx, domain.RecordEventRequest{EventType: "login"})
	assert.ErrorIs(t, err, domain.ErrMissingCompany)

	_, err = svc.Record(ctx, domain.RecordEventRequest{CompanyID: "acme"})
	assert.ErrorIs(t, err, domain.ErrMissingEventType)
}

func TestRecord_DefaultsAndExternalKey(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc := newTestService(t, fake)
	ctx := context.Background()

	event, err := svc.Record(ctx, domain.RecordEventRequest{
		ExternalCompanyID: "crm-42",
		EventType:         "login",
	})
	require.NoError(t, err)
	assert.Equal(t, "crm-42", event.CompanyID)
	assert.Equal(t, now, event.OccurredAt)

	withTime, err := svc.Record(ctx, domain.RecordEventRequest{
		CompanyID:  "acme",
		EventType:  "login",
		OccurredAt: now.AddDate(0, 0, -3),
	})
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -3), withTime.OccurredAt)
}

func TestRecordBatch_IsolatesFailures(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)

	resp, err := svc.RecordBatch(context.Background(), []domain.RecordEventRequest{
		{CompanyID: "acme", EventType: "login"},
		{EventType: "login"}, // missing company
		{CompanyID: "acme", EventType: "report_generated"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Recorded)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.Empty(t, resp.Results[0].Error)
	assert.Equal(t, domain.ErrMissingCompany.Error(), resp.Results[1].Error)
	assert.NotEmpty(t, resp.Results[2].EventID)
}

func TestWindow_LookbackValidation(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.Window(ctx, "acme", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidLookback)

	_, err = svc.Window(ctx, "acme", 366)
	assert.ErrorIs(t, err, domain.ErrInvalidLookback)

	_, err = svc.Window(ctx, "", 90)
	assert.ErrorIs(t, err, domain.ErrMissingCompany)
}

func TestWindow_FiltersByTime(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc := newTestService(t, fake)
	ctx := context.Background()

	for _, daysAgo := range []int{1, 30, 120} {
		_, err := svc.Record(ctx, domain.RecordEventRequest{
			CompanyID:  "acme",
			EventType:  "login",
			OccurredAt: now.AddDate(0, 0, -daysAgo),
		})
		require.NoError(t, err)
	}

	events, err := svc.Window(ctx, "acme", 90)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestList_Pagination(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc := newTestService(t, fake)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Record(ctx, domain.RecordEventRequest{CompanyID: "acme", EventType: "login"})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, domain.ListEventsRequest{CompanyID: "acme", PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, first.Events, 2)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := svc.List(ctx, domain.ListEventsRequest{
		CompanyID: "acme",
		PageSize:  2,
		PageToken: first.NextPageToken,
	})
	require.NoError(t, err)
	assert.Len(t, second.Events, 2)
	assert.NotEqual(t, first.Events[0].ID, second.Events[0].ID)
}

func TestCompaniesOldestAndReset(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	svc := newTestService(t, fake)
	ctx := context.Background()

	oldest := now.AddDate(0, 0, -40)
	for _, req := range []domain.RecordEventRequest{
		{CompanyID: "acme", EventType: "login", OccurredAt: oldest},
		{CompanyID: "acme", EventType: "login", OccurredAt: now},
		{CompanyID: "globex", EventType: "login", OccurredAt: now},
	} {
		_, err := svc.Record(ctx, req)
		require.NoError(t, err)
	}

	companies, err := svc.Companies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, companies)

	first, err := svc.Oldest(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.WithinDuration(t, oldest, *first, time.Second)

	none, err := svc.Oldest(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, svc.Reset(ctx, "acme"))
	events, err := svc.Window(ctx, "acme", 90)
	require.NoError(t, err)
	assert.Empty(t, events)
}
