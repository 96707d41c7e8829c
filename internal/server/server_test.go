package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	behavioralservice "github.com/pulselens/pulselens/internal/behavioral/service"
	"github.com/pulselens/pulselens/internal/clock"
	"github.com/pulselens/pulselens/internal/config"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
	eventrepository "github.com/pulselens/pulselens/internal/event/repository"
	eventservice "github.com/pulselens/pulselens/internal/event/service"
	expansiondomain "github.com/pulselens/pulselens/internal/expansion/domain"
	expansionservice "github.com/pulselens/pulselens/internal/expansion/service"
	onboardingdomain "github.com/pulselens/pulselens/internal/onboarding/domain"
	onboardingservice "github.com/pulselens/pulselens/internal/onboarding/service"
	renewalservice "github.com/pulselens/pulselens/internal/renewal/service"
	"github.com/pulselens/pulselens/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&eventdomain.UsageEvent{},
		&expansiondomain.SeatLicense{},
		&onboardingdomain.OnboardingStart{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	scoring := config.NewStaticScoringConfigHolder(config.DefaultScoringConfig())

	eventSvc := eventservice.NewService(eventservice.ServiceParam{
		Log:   log,
		GenID: node,
		Repo:  eventrepository.Provide(db),
		Clock: fake,
	})
	behavioralSvc := behavioralservice.NewService(behavioralservice.ServiceParam{
		Log:      log,
		EventSvc: eventSvc,
		Clock:    fake,
	})
	renewalSvc := renewalservice.NewService(renewalservice.ServiceParam{
		Log:      log,
		EventSvc: eventSvc,
		Clock:    fake,
		Scoring:  scoring,
	})
	onboardingSvc := onboardingservice.NewService(onboardingservice.ServiceParam{
		Log:      log,
		EventSvc: eventSvc,
		Starts:   repository.ProvideStore[onboardingdomain.OnboardingStart](db),
		Clock:    fake,
	})
	expansionSvc := expansionservice.NewService(expansionservice.ServiceParam{
		Log:        log,
		EventSvc:   eventSvc,
		Behavioral: behavioralSvc,
		Licenses:   repository.ProvideStore[expansiondomain.SeatLicense](db),
		Scoring:    scoring,
		Clock:      fake,
	})

	cfg := config.Config{Environment: "test", HTTPAddr: ":0"}
	return NewServer(ServerParams{
		Gin:           NewEngine(cfg, log),
		Cfg:           cfg,
		Log:           log,
		EventSvc:      eventSvc,
		RenewalSvc:    renewalSvc,
		BehavioralSvc: behavioralSvc,
		OnboardingSvc: onboardingSvc,
		ExpansionSvc:  expansionSvc,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func TestRecordEventEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/events", map[string]any{
		"company_id": "acme",
		"event_type": "login",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var event eventdomain.UsageEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.Equal(t, "acme", event.CompanyID)
}

func TestRecordEventEndpoint_MissingCompany(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/events", map[string]any{
		"event_type": "login",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestBatchEventsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/events/batch", []map[string]any{
		{"company_id": "acme", "event_type": "login"},
		{"event_type": "login"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp eventdomain.BatchRecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Recorded)
	assert.Equal(t, 1, resp.Failed)
}

func TestScoreEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/events", map[string]any{
		"company_id": "acme",
		"event_type": "login",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	for _, path := range []string{
		"/v1/companies/acme/health",
		"/v1/companies/acme/trend",
		"/v1/companies/acme/onboarding",
		"/v1/companies/acme/expansion",
	} {
		w := doJSON(t, s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), `"company_id":"acme"`, path)
	}
}

func TestBatchScoreEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/health:batch", map[string]any{
		"company_ids": []string{"b", "a"},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []struct {
			CompanyID string `json:"company_id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "b", resp.Results[0].CompanyID)
	assert.Equal(t, "a", resp.Results[1].CompanyID)

	empty := doJSON(t, s, http.MethodPost, "/v1/health:batch", map[string]any{"company_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestSeatLicenseEndpoint(t *testing.T) {
	s := newTestServer(t)

	bad := doJSON(t, s, http.MethodPut, "/v1/companies/acme/seat-license", map[string]any{"licensed_seats": 0})
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	ok := doJSON(t, s, http.MethodPut, "/v1/companies/acme/seat-license", map[string]any{"licensed_seats": 25})
	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestOnboardingStartEndpoint(t *testing.T) {
	s := newTestServer(t)

	missing := doJSON(t, s, http.MethodPut, "/v1/companies/acme/onboarding-start", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	ok := doJSON(t, s, http.MethodPut, "/v1/companies/acme/onboarding-start", map[string]any{
		"started_at": "2026-08-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestResetCompanyEndpoint(t *testing.T) {
	s := newTestServer(t)

	created := doJSON(t, s, http.MethodPost, "/v1/events", map[string]any{
		"company_id": "acme",
		"event_type": "login",
	})
	require.Equal(t, http.StatusCreated, created.Code)

	w := doJSON(t, s, http.MethodDelete, "/v1/companies/acme/events", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	list := doJSON(t, s, http.MethodGet, "/v1/events?company_id=acme", nil)
	assert.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"events":[]`)
}
