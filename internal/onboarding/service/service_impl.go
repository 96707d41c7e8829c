package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pulselens/pulselens/internal/clock"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
	obsmetrics "github.com/pulselens/pulselens/internal/observability/metrics"
	"github.com/pulselens/pulselens/internal/onboarding/domain"
	"github.com/pulselens/pulselens/internal/trend"
	"github.com/pulselens/pulselens/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	onboardingWindowDays = 30
	eventLookbackDays    = 365
	maxRecommendations   = 5
	blockedGraceDays     = 7
	keyMilestoneWeight   = 0.15
)

type ServiceParam struct {
	fx.In

	Log      *zap.Logger
	EventSvc eventdomain.Service
	Starts   repository.Repository[domain.OnboardingStart]
	Clock    clock.Clock
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	eventSvc eventdomain.Service
	starts   repository.Repository[domain.OnboardingStart]
	clock    clock.Clock
	metrics  *obsmetrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:      p.Log.Named("onboarding.service"),
		eventSvc: p.EventSvc,
		starts:   p.Starts,
		clock:    p.Clock,
		metrics:  p.Metrics,
	}
}

func (s *Service) SetStartDate(ctx context.Context, companyID string, startedAt time.Time) error {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return eventdomain.ErrMissingCompany
	}
	return s.starts.Save(ctx, &domain.OnboardingStart{
		CompanyID: companyID,
		StartedAt: startedAt.UTC(),
		UpdatedAt: s.clock.Now(),
	})
}

func (s *Service) Score(ctx context.Context, companyID string, startedAt *time.Time) (*domain.HealthScore, error) {
	begun := s.clock.Now()

	events, err := s.eventSvc.Window(ctx, companyID, eventLookbackDays)
	if err != nil {
		return nil, err
	}
	trend.SortEventsByTime(events)

	now := s.clock.Now()
	start, err := s.resolveStart(ctx, companyID, startedAt, now)
	if err != nil {
		return nil, err
	}

	daysSince := int(now.Sub(start).Hours() / 24)
	if daysSince < 0 {
		daysSince = 0
	}

	milestones := buildMilestones(start, events)
	coverage := coverageScore(milestones, daysSince)
	ttfv := timeToFirstValue(milestones, start)
	activity := activityTrend(events, now)
	status := classifyStatus(milestones, coverage, daysSince, now)

	result := &domain.HealthScore{
		CompanyID:              companyID,
		Status:                 status,
		MilestoneCoverageScore: coverage,
		Milestones:             milestones,
		StartedAt:              start,
		DaysSinceOnboarding:    daysSince,
		TimeToFirstValueDays:   ttfv,
		Forecast:               forecast(milestones, daysSince),
		ActivityTrend:          activity,
		CalculatedAt:           now,
	}
	result.Score = overallScore(result)
	result.Recommendations = buildRecommendations(result, now)

	if s.metrics != nil {
		s.metrics.RecordScore(ctx, "onboarding", s.clock.Now().Sub(begun))
	}
	return result, nil
}

func (s *Service) BatchScore(ctx context.Context, companyIDs []string) ([]domain.HealthScore, error) {
	results := make([]domain.HealthScore, 0, len(companyIDs))
	for _, companyID := range companyIDs {
		result, err := s.Score(ctx, companyID, nil)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// resolveStart picks the onboarding start date: explicit argument, then
// the stored date, then the earliest event (persisted once inferred),
// then now.
func (s *Service) resolveStart(ctx context.Context, companyID string, explicit *time.Time, now time.Time) (time.Time, error) {
	if explicit != nil {
		return explicit.UTC(), nil
	}

	stored, err := s.starts.FindOne(ctx, &domain.OnboardingStart{CompanyID: companyID})
	if err != nil {
		return time.Time{}, err
	}
	if stored != nil {
		return stored.StartedAt, nil
	}

	oldest, err := s.eventSvc.Oldest(ctx, companyID)
	if err != nil {
		return time.Time{}, err
	}
	if oldest != nil {
		inferred := oldest.UTC()
		if err := s.starts.Save(ctx, &domain.OnboardingStart{
			CompanyID: companyID,
			StartedAt: inferred,
			UpdatedAt: now,
		}); err != nil {
			return time.Time{}, err
		}
		return inferred, nil
	}

	return now, nil
}

// buildMilestones derives per-company milestone instances; the first
// matching event's timestamp completes a milestone.
func buildMilestones(start time.Time, events []eventdomain.UsageEvent) []domain.Milestone {
	milestones := make([]domain.Milestone, len(domain.Template))
	index := make(map[string]int, len(domain.Template))
	for i, tpl := range domain.Template {
		milestones[i] = domain.Milestone{
			Name:          tpl.Name,
			ExpectedByDay: tpl.ExpectedByDay,
			ExpectedDate:  start.AddDate(0, 0, tpl.ExpectedByDay),
			IsAhaMoment:   tpl.IsAhaMoment,
			Weight:        tpl.Weight,
		}
		index[tpl.Name] = i
	}

	complete := func(name string, at time.Time) {
		i, ok := index[name]
		if !ok || milestones[i].Completed {
			return
		}
		completedAt := at
		milestones[i].Completed = true
		milestones[i].CompletedAt = &completedAt
	}

	for _, event := range events {
		if name, ok := domain.EventTypeMilestones[event.EventType]; ok {
			complete(name, event.OccurredAt)
		}
		if event.FeatureName != "" {
			if name, ok := domain.FeatureMilestones[event.FeatureName]; ok {
				complete(name, event.OccurredAt)
			}
		}
	}
	return milestones
}

// coverageScore restricts to milestones already due or already completed.
// Early completion earns a bonus of 10% of the milestone's weight.
func coverageScore(milestones []domain.Milestone, daysSince int) float64 {
	var eligibleWeight, completedWeight, earlyBonus float64
	anyCompleted := false
	for _, m := range milestones {
		if m.Completed {
			anyCompleted = true
		}
		if m.ExpectedByDay > daysSince && !m.Completed {
			continue
		}
		eligibleWeight += m.Weight
		if m.Completed {
			completedWeight += m.Weight
			if m.CompletedAt != nil && m.CompletedAt.Before(m.ExpectedDate) {
				earlyBonus += 0.1 * m.Weight
			}
		}
	}

	if eligibleWeight == 0 {
		if anyCompleted {
			return 70
		}
		return 50
	}
	return math.Min((completedWeight+earlyBonus)/eligibleWeight*100, 100)
}

func timeToFirstValue(milestones []domain.Milestone, start time.Time) *int {
	var earliest *time.Time
	for _, m := range milestones {
		if !m.IsAhaMoment || !m.Completed || m.CompletedAt == nil {
			continue
		}
		if earliest == nil || m.CompletedAt.Before(*earliest) {
			earliest = m.CompletedAt
		}
	}
	if earliest == nil {
		return nil
	}
	days := int(earliest.Sub(start).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// activityTrend is the ratio of last-7-day events to the 7 days before
// that; 1.5 when there is recent activity but no prior baseline, 0.5
// when both are empty.
func activityTrend(events []eventdomain.UsageEvent, now time.Time) float64 {
	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)

	var recent, prior float64
	for _, event := range events {
		switch {
		case event.OccurredAt.After(weekAgo):
			recent++
		case event.OccurredAt.After(twoWeeksAgo):
			prior++
		}
	}
	if prior == 0 {
		if recent > 0 {
			return 1.5
		}
		return 0.5
	}
	return recent / prior
}

func baseProgress(milestones []domain.Milestone) float64 {
	completed := 0
	for _, m := range milestones {
		if m.Completed {
			completed++
		}
	}
	return float64(completed) / float64(len(milestones)) * 100
}

// forecast projects end-of-window completion. Same-day onboarding divides
// by one day rather than zero.
func forecast(milestones []domain.Milestone, daysSince int) float64 {
	base := baseProgress(milestones)
	if daysSince >= onboardingWindowDays {
		return clamp(base, 0, 100)
	}

	elapsed := daysSince
	if elapsed == 0 {
		elapsed = 1
	}
	remaining := float64(onboardingWindowDays - daysSince)
	projected := base + remaining/float64(elapsed)*base*0.5
	return clamp(projected, 0, 100)
}

func classifyStatus(milestones []domain.Milestone, coverage float64, daysSince int, now time.Time) domain.Status {
	for _, m := range milestones {
		if m.Completed || m.Weight < keyMilestoneWeight {
			continue
		}
		if now.After(m.ExpectedDate.AddDate(0, 0, blockedGraceDays)) {
			return domain.StatusBlocked
		}
	}

	actual := baseProgress(milestones)
	expected := math.Min(float64(daysSince)/onboardingWindowDays, 1) * 100

	if actual >= 0.8*expected || coverage >= 70 {
		return domain.StatusOnTrack
	}
	if daysSince > 14 && actual < 0.5*expected {
		return domain.StatusAtRisk
	}
	return domain.StatusBehind
}

func overallScore(result *domain.HealthScore) int {
	score := result.MilestoneCoverageScore * 0.4

	switch {
	case result.TimeToFirstValueDays != nil:
		score += ttfvTier(*result.TimeToFirstValueDays) * 0.2
	case result.DaysSinceOnboarding < 7:
		// Too early to have hit an aha moment; partial credit.
		score += 50 * 0.2
	}

	totalAha, completedAha := 0, 0
	for _, m := range result.Milestones {
		if !m.IsAhaMoment {
			continue
		}
		totalAha++
		if m.Completed {
			completedAha++
		}
	}
	ahaRatio := 50.0
	if totalAha > 0 {
		ahaRatio = float64(completedAha) / float64(totalAha) * 100
	}
	score += ahaRatio * 0.25

	score += statusTier(result.Status) * 0.15
	return int(math.Round(clamp(score, 0, 100)))
}

func ttfvTier(days int) float64 {
	switch {
	case days <= 3:
		return 100
	case days <= 7:
		return 80
	case days <= 14:
		return 60
	case days <= 21:
		return 40
	default:
		return 20
	}
}

func statusTier(status domain.Status) float64 {
	switch status {
	case domain.StatusOnTrack:
		return 100
	case domain.StatusBehind:
		return 60
	case domain.StatusBlocked:
		return 30
	default: // at_risk
		return 20
	}
}

func buildRecommendations(result *domain.HealthScore, now time.Time) []string {
	var recs []string

	switch result.Status {
	case domain.StatusBlocked:
		recs = append(recs, "Onboarding is blocked on an overdue key milestone; escalate with the account champion.")
	case domain.StatusAtRisk:
		recs = append(recs, "Onboarding is significantly behind pace; schedule a rescue call this week.")
	case domain.StatusBehind:
		recs = append(recs, "Onboarding is behind the expected pace; review open milestones with the customer.")
	case domain.StatusOnTrack:
		recs = append(recs, "Onboarding is on track; keep the current cadence.")
	}

	for _, m := range result.Milestones {
		if m.IsAhaMoment && !m.Completed {
			recs = append(recs, fmt.Sprintf("Drive toward the %q activation moment next.", m.Name))
			break
		}
	}

	var overdue *domain.Milestone
	for i := range result.Milestones {
		m := &result.Milestones[i]
		if m.Completed || !now.After(m.ExpectedDate) {
			continue
		}
		if overdue == nil || m.ExpectedDate.Before(overdue.ExpectedDate) {
			overdue = m
		}
	}
	if overdue != nil {
		recs = append(recs, fmt.Sprintf("The %q milestone is overdue; offer hands-on help to complete it.", overdue.Name))
	}

	switch {
	case result.DaysSinceOnboarding <= 7:
		recs = append(recs, "First week: prioritize the kickoff call and initial setup.")
	case result.DaysSinceOnboarding <= 14:
		recs = append(recs, "Week two: focus on connecting integrations and inviting the wider team.")
	case result.DaysSinceOnboarding <= 30:
		recs = append(recs, "Final onboarding stretch: target the remaining activation milestones.")
	default:
		recs = append(recs, "Onboarding window has passed; transition the account to adoption programs.")
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
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
