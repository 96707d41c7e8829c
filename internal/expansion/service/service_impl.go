package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	bhdomain "github.com/pulselens/pulselens/internal/behavioral/domain"
	"github.com/pulselens/pulselens/internal/clock"
	"github.com/pulselens/pulselens/internal/config"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
	"github.com/pulselens/pulselens/internal/expansion/domain"
	obsmetrics "github.com/pulselens/pulselens/internal/observability/metrics"
	"github.com/pulselens/pulselens/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	lookbackDays       = 90
	seatWindowDays     = 30
	maxRecommendations = 5
	topVectors         = 3
)

var addOnKeywords = []string{"addon", "add_on", "integration", "plugin", "marketplace"}

var premiumKeywords = []string{"premium", "advanced", "pro_", "upgrade", "enterprise"}

type ServiceParam struct {
	fx.In

	Log        *zap.Logger
	EventSvc   eventdomain.Service
	Behavioral bhdomain.Service
	Licenses   repository.Repository[domain.SeatLicense]
	Scoring    *config.ScoringConfigHolder
	Clock      clock.Clock
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	eventSvc   eventdomain.Service
	behavioral bhdomain.Service
	licenses   repository.Repository[domain.SeatLicense]
	scoring    *config.ScoringConfigHolder
	clock      clock.Clock
	metrics    *obsmetrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:        p.Log.Named("expansion.service"),
		eventSvc:   p.EventSvc,
		behavioral: p.Behavioral,
		licenses:   p.Licenses,
		scoring:    p.Scoring,
		clock:      p.Clock,
		metrics:    p.Metrics,
	}
}

func (s *Service) SetSeatLicense(ctx context.Context, companyID string, licensedSeats int) error {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return eventdomain.ErrMissingCompany
	}
	if licensedSeats <= 0 {
		return domain.ErrInvalidSeatCount
	}
	return s.licenses.Save(ctx, &domain.SeatLicense{
		CompanyID:     companyID,
		LicensedSeats: licensedSeats,
		UpdatedAt:     s.clock.Now(),
	})
}

func (s *Service) Predict(ctx context.Context, companyID string) (*domain.Prediction, error) {
	begun := s.clock.Now()

	events, err := s.eventSvc.Window(ctx, companyID, lookbackDays)
	if err != nil {
		return nil, err
	}
	trendResult, err := s.behavioral.Analyze(ctx, companyID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	cfg := s.scoring.Current()

	utilization, err := s.seatUtilization(ctx, companyID, events, now, cfg)
	if err != nil {
		return nil, err
	}

	features := distinctFeatures(events)
	vectors := []domain.VectorScore{
		scoreSeatGrowth(utilization),
		scoreAddOns(events, features),
		scoreFeatureUpgrades(events, features, trendResult),
		scoreUsageBased(events, trendResult),
	}
	sort.SliceStable(vectors, func(i, j int) bool { return vectors[i].Score > vectors[j].Score })

	signals := detectSignals(events, features, utilization, trendResult, now)

	score := likelihoodScore(vectors, signals, trendResult.Classification)
	horizon := classifyHorizon(score, signals, utilization)

	prediction := &domain.Prediction{
		CompanyID:       companyID,
		Score:           score,
		Horizon:         horizon,
		Vectors:         vectors,
		Signals:         signals,
		Utilization:     utilization,
		Recommendations: buildRecommendations(horizon, vectors, signals),
		CalculatedAt:    now,
	}

	if s.metrics != nil {
		s.metrics.RecordScore(ctx, "expansion", s.clock.Now().Sub(begun))
	}
	return prediction, nil
}

func (s *Service) BatchPredict(ctx context.Context, companyIDs []string) ([]domain.Prediction, error) {
	results := make([]domain.Prediction, 0, len(companyIDs))
	for _, companyID := range companyIDs {
		result, err := s.Predict(ctx, companyID)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// seatUtilization derives seat occupancy from distinct acting users in
// the trailing 30 days. Companies with events but no user identities
// still count as one occupied seat.
func (s *Service) seatUtilization(ctx context.Context, companyID string, events []eventdomain.UsageEvent, now time.Time, cfg config.ScoringConfig) (domain.SeatUtilization, error) {
	licensedSeats := cfg.DefaultLicensedSeats
	license, err := s.licenses.FindOne(ctx, &domain.SeatLicense{CompanyID: companyID})
	if err != nil {
		return domain.SeatUtilization{}, err
	}
	if license != nil && license.LicensedSeats > 0 {
		licensedSeats = license.LicensedSeats
	}

	cutoff := now.AddDate(0, 0, -seatWindowDays)
	perUser := make(map[string]int)
	anyRecent := false
	for _, event := range events {
		if !event.OccurredAt.After(cutoff) {
			continue
		}
		anyRecent = true
		if userID := event.UserID(); userID != "" {
			perUser[userID]++
		}
	}

	currentSeats := len(perUser)
	if currentSeats == 0 && anyRecent {
		currentSeats = 1
	}

	powerUsers := 0
	for _, count := range perUser {
		if count >= cfg.PowerUserEvents30d {
			powerUsers++
		}
	}

	utilizationPercent := 0
	if licensedSeats > 0 {
		utilizationPercent = int(math.Min(100, math.Round(float64(currentSeats)/float64(licensedSeats)*100)))
	}

	return domain.SeatUtilization{
		CurrentSeats:       currentSeats,
		LicensedSeats:      licensedSeats,
		UtilizationPercent: utilizationPercent,
		PowerUsers:         powerUsers,
	}, nil
}

// Each vector accumulates points from fixed rule tiers and caps at 100.
// Confidence grows with the score from a vector-specific base.

func scoreSeatGrowth(u domain.SeatUtilization) domain.VectorScore {
	score := 0
	switch {
	case u.UtilizationPercent >= 95:
		score += 40
	case u.UtilizationPercent >= 85:
		score += 30
	case u.UtilizationPercent >= 70:
		score += 20
	case u.UtilizationPercent >= 50:
		score += 10
	}

	if u.CurrentSeats > 0 {
		ratio := float64(u.PowerUsers) / float64(u.CurrentSeats)
		switch {
		case ratio >= 0.5:
			score += 25
		case ratio >= 0.3:
			score += 15
		case ratio >= 0.1:
			score += 8
		}
	}

	if u.CurrentSeats > 0 && u.LicensedSeats-u.CurrentSeats <= 2 {
		score += 20
	}

	score = capScore(score)
	base := 0.4
	if u.UtilizationPercent >= 70 {
		base = 0.6
	}
	return domain.VectorScore{
		Type:       domain.VectorSeatGrowth,
		Score:      score,
		Confidence: confidence(base, score),
		Reasoning:  fmt.Sprintf("%d of %d licensed seats in use (%d%%), %d power users", u.CurrentSeats, u.LicensedSeats, u.UtilizationPercent, u.PowerUsers),
	}
}

func scoreAddOns(events []eventdomain.UsageEvent, features map[string]int) domain.VectorScore {
	score := 0
	switch {
	case len(features) >= 10:
		score += 35
	case len(features) >= 6:
		score += 25
	case len(features) >= 3:
		score += 15
	}

	addOnEvents := keywordEventCount(events, addOnKeywords)
	switch {
	case addOnEvents >= 20:
		score += 30
	case addOnEvents >= 10:
		score += 20
	case addOnEvents >= 3:
		score += 10
	}

	heavyFeatures := 0
	for _, count := range features {
		if count >= 50 {
			heavyFeatures++
		}
	}
	switch {
	case heavyFeatures >= 3:
		score += 25
	case heavyFeatures >= 1:
		score += 15
	}

	score = capScore(score)
	base := 0.4
	if len(features) >= 6 {
		base = 0.6
	}
	return domain.VectorScore{
		Type:       domain.VectorAddOns,
		Score:      score,
		Confidence: confidence(base, score),
		Reasoning:  fmt.Sprintf("%d distinct features, %d add-on interactions, %d heavily used features", len(features), addOnEvents, heavyFeatures),
	}
}

func scoreFeatureUpgrades(events []eventdomain.UsageEvent, features map[string]int, trendResult *bhdomain.UsageTrend) domain.VectorScore {
	score := 0
	switch trendResult.Classification {
	case bhdomain.ClassAcceleratingUse:
		score += 30
	case bhdomain.ClassHealthyGrowth:
		score += 20
	case bhdomain.ClassStabilizing:
		score += 10
	}
	if trendResult.TrendDirection > 1 {
		score += 10
	}

	switch {
	case len(features) >= 8:
		score += 25
	case len(features) >= 5:
		score += 15
	case len(features) >= 2:
		score += 5
	}

	premiumEvents := keywordEventCount(events, premiumKeywords)
	switch {
	case premiumEvents >= 10:
		score += 25
	case premiumEvents >= 3:
		score += 15
	}

	score = capScore(score)
	base := 0.4
	if trendResult.TrendDirection > 0 {
		base = 0.6
	}
	return domain.VectorScore{
		Type:       domain.VectorFeatureUpgrades,
		Score:      score,
		Confidence: confidence(base, score),
		Reasoning:  fmt.Sprintf("usage classified %s across %d features, %d premium-tier interactions", trendResult.Classification, len(features), premiumEvents),
	}
}

func scoreUsageBased(events []eventdomain.UsageEvent, trendResult *bhdomain.UsageTrend) domain.VectorScore {
	score := 0
	switch {
	case len(events) >= 500:
		score += 35
	case len(events) >= 200:
		score += 25
	case len(events) >= 80:
		score += 15
	case len(events) >= 20:
		score += 5
	}

	switch {
	case trendResult.MovingAverage >= 50:
		score += 25
	case trendResult.MovingAverage >= 20:
		score += 15
	case trendResult.MovingAverage > 0:
		score += 5
	}

	switch {
	case trendResult.TrendDirection > 2:
		score += 20
	case trendResult.TrendDirection > 0.5:
		score += 10
	}

	if ratio := positiveDeltaRatio(trendResult.WeeklyDeltas); ratio >= 0.6 {
		score += 20
	} else if ratio >= 0.4 {
		score += 10
	}

	score = capScore(score)
	base := 0.4
	if len(events) >= 200 {
		base = 0.6
	}
	return domain.VectorScore{
		Type:       domain.VectorUsageBased,
		Score:      score,
		Confidence: confidence(base, score),
		Reasoning:  fmt.Sprintf("%d events in window, %.1f%% recent growth, slope %.2f", len(events), trendResult.MovingAverage, trendResult.TrendDirection),
	}
}

// detectSignals evaluates seven independent conditions; each carries its
// own strength thresholds. Results are sorted strongest first.
func detectSignals(events []eventdomain.UsageEvent, features map[string]int, u domain.SeatUtilization, trendResult *bhdomain.UsageTrend, now time.Time) []domain.Signal {
	var signals []domain.Signal
	add := func(signalType string, strength domain.SignalStrength, description string) {
		signals = append(signals, domain.Signal{
			Type:        signalType,
			Strength:    strength,
			Description: description,
			DetectedAt:  now,
		})
	}

	if u.UtilizationPercent >= 85 {
		strength := domain.SignalWeak
		switch {
		case u.UtilizationPercent >= 95:
			strength = domain.SignalStrong
		case u.UtilizationPercent >= 90:
			strength = domain.SignalModerate
		}
		add("high_seat_utilization", strength, fmt.Sprintf("seat utilization at %d%%", u.UtilizationPercent))
	}

	if delta := lastDelta(trendResult.WeeklyDeltas); delta > 30 {
		strength := domain.SignalWeak
		switch {
		case delta > 100:
			strength = domain.SignalStrong
		case delta > 60:
			strength = domain.SignalModerate
		}
		add("usage_spike", strength, fmt.Sprintf("weekly usage up %.0f%%", delta))
	}

	if len(features) >= 8 {
		strength := domain.SignalWeak
		switch {
		case len(features) >= 12:
			strength = domain.SignalStrong
		case len(features) >= 10:
			strength = domain.SignalModerate
		}
		add("feature_adoption_milestone", strength, fmt.Sprintf("%d distinct features adopted", len(features)))
	}

	switch trendResult.Classification {
	case bhdomain.ClassAcceleratingUse:
		add("growth_classification", domain.SignalStrong, "usage is accelerating")
	case bhdomain.ClassHealthyGrowth:
		add("growth_classification", domain.SignalModerate, "usage shows healthy growth")
	}

	if u.PowerUsers >= 3 {
		strength := domain.SignalWeak
		switch {
		case u.PowerUsers >= 6:
			strength = domain.SignalStrong
		case u.PowerUsers >= 4:
			strength = domain.SignalModerate
		}
		add("power_user_presence", strength, fmt.Sprintf("%d power users active", u.PowerUsers))
	}

	if premiumEvents := keywordEventCount(events, premiumKeywords); premiumEvents >= 1 {
		strength := domain.SignalWeak
		switch {
		case premiumEvents >= 10:
			strength = domain.SignalStrong
		case premiumEvents >= 4:
			strength = domain.SignalModerate
		}
		add("premium_interest", strength, fmt.Sprintf("%d premium-tier interactions", premiumEvents))
	}

	if apiEvents := keywordEventCount(events, []string{"api"}); apiEvents > 10 {
		strength := domain.SignalWeak
		switch {
		case apiEvents > 50:
			strength = domain.SignalStrong
		case apiEvents > 25:
			strength = domain.SignalModerate
		}
		add("api_heavy_usage", strength, fmt.Sprintf("%d API interactions", apiEvents))
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return strengthRank(signals[i].Strength) > strengthRank(signals[j].Strength)
	})
	return signals
}

// likelihoodScore blends the strongest vectors with signal and trend
// adjustments. Vector weight decays as 1/(rank+1).
func likelihoodScore(vectors []domain.VectorScore, signals []domain.Signal, classification bhdomain.Classification) int {
	var weightedSum, weightTotal float64
	for rank, vector := range vectors {
		if rank >= topVectors {
			break
		}
		weight := 1.0 / float64(rank+1)
		weightedSum += float64(vector.Score) * vector.Confidence * weight
		weightTotal += weight
	}

	score := 0.0
	if weightTotal > 0 {
		score = weightedSum / weightTotal
	}

	strong, moderate := 0, 0
	for _, signal := range signals {
		switch signal.Strength {
		case domain.SignalStrong:
			strong++
		case domain.SignalModerate:
			moderate++
		}
	}
	score += math.Min(20, float64(8*strong+3*moderate))

	switch classification {
	case bhdomain.ClassAcceleratingUse:
		score += 10
	case bhdomain.ClassHealthyGrowth:
		score += 5
	case bhdomain.ClassNearAbandonment, bhdomain.ClassSharpDecline, bhdomain.ClassSoftDecline:
		score -= 15
	}

	return int(math.Round(math.Max(0, math.Min(100, score))))
}

func classifyHorizon(score int, signals []domain.Signal, u domain.SeatUtilization) domain.Horizon {
	strong := 0
	for _, signal := range signals {
		if signal.Strength == domain.SignalStrong {
			strong++
		}
	}

	switch {
	case (score >= 75 && strong >= 2) || (u.UtilizationPercent >= 95 && score >= 60):
		return domain.HorizonReadyNow
	case (score >= 55 && strong >= 1) || (u.UtilizationPercent >= 80 && score >= 45):
		return domain.HorizonLikelySoon
	case score >= 35:
		return domain.HorizonPotential
	default:
		return domain.HorizonNotLikely
	}
}

func buildRecommendations(horizon domain.Horizon, vectors []domain.VectorScore, signals []domain.Signal) []string {
	var recs []string

	switch horizon {
	case domain.HorizonReadyNow:
		recs = append(recs, "Expansion conditions are met; open the upsell conversation now.")
	case domain.HorizonLikelySoon:
		recs = append(recs, "Expansion is likely soon; prepare a proposal for the next business review.")
	case domain.HorizonPotential:
		recs = append(recs, "Expansion potential exists; nurture adoption before proposing an upgrade.")
	case domain.HorizonNotLikely:
		recs = append(recs, "No expansion opportunity detected; focus on adoption and retention first.")
	}

	if len(vectors) > 0 {
		switch vectors[0].Type {
		case domain.VectorSeatGrowth:
			recs = append(recs, "Seat utilization is the strongest vector; propose additional licenses.")
		case domain.VectorAddOns:
			recs = append(recs, "Add-on interest is the strongest vector; demo complementary modules.")
		case domain.VectorFeatureUpgrades:
			recs = append(recs, "Feature depth is the strongest vector; pitch the next plan tier.")
		case domain.VectorUsageBased:
			recs = append(recs, "Usage volume is the strongest vector; review consumption-based pricing.")
		}
	}

	for _, signal := range signals {
		if signal.Strength != domain.SignalStrong {
			break
		}
		recs = append(recs, fmt.Sprintf("Strong signal: %s.", signal.Description))
		if len(recs) >= maxRecommendations {
			break
		}
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

func distinctFeatures(events []eventdomain.UsageEvent) map[string]int {
	features := make(map[string]int)
	for _, event := range events {
		if event.FeatureName != "" {
			features[event.FeatureName]++
		}
	}
	return features
}

func keywordEventCount(events []eventdomain.UsageEvent, keywords []string) int {
	count := 0
	for _, event := range events {
		haystack := strings.ToLower(event.EventType + " " + event.FeatureName)
		for _, keyword := range keywords {
			if strings.Contains(haystack, keyword) {
				count++
				break
			}
		}
	}
	return count
}

func positiveDeltaRatio(deltas []float64) float64 {
	if len(deltas) == 0 {
		return 0
	}
	positive := 0
	for _, delta := range deltas {
		if delta > 0 {
			positive++
		}
	}
	return float64(positive) / float64(len(deltas))
}

func lastDelta(deltas []float64) float64 {
	if len(deltas) == 0 {
		return 0
	}
	return deltas[len(deltas)-1]
}

func strengthRank(strength domain.SignalStrength) int {
	switch strength {
	case domain.SignalStrong:
		return 2
	case domain.SignalModerate:
		return 1
	default:
		return 0
	}
}

func capScore(score int) int {
	if score > 100 {
		return 100
	}
	return score
}

func confidence(base float64, score int) float64 {
	return math.Round((base+float64(score)/100*0.3)*100) / 100
}
