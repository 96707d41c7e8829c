// Package trend buckets usage events into calendar weeks and classifies
// week-over-week movement. It is shared machinery for the renewal and
// behavioral scoring engines.
package trend

import (
	"sort"
	"time"

	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
)

type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
)

// Band around the previous week's count inside which a week counts as stable.
const stableBand = 0.1

// WeeklyBucket is a derived, ephemeral aggregate over one calendar week.
type WeeklyBucket struct {
	PeriodStart    time.Time `json:"period_start"`
	EventCount     int       `json:"event_count"`
	UniqueUsers    int       `json:"unique_user_count"`
	UniqueFeatures int       `json:"unique_feature_count"`
	Direction      Direction `json:"direction"`
}

// WeekStart truncates t to the start of its calendar week (locale day 0,
// i.e. Sunday, at UTC midnight).
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// BuildWeeklyBuckets aggregates events into chronological calendar weeks
// from the earliest event's week through the week containing now. Weeks
// with no events appear with zero counts so that variance statistics see
// the gaps. Returns nil when there are no events.
func BuildWeeklyBuckets(events []eventdomain.UsageEvent, now time.Time) []WeeklyBucket {
	if len(events) == 0 {
		return nil
	}

	type weekAgg struct {
		count    int
		users    map[string]struct{}
		features map[string]struct{}
	}

	byWeek := make(map[time.Time]*weekAgg)
	earliest := events[0].OccurredAt
	for _, event := range events {
		if event.OccurredAt.Before(earliest) {
			earliest = event.OccurredAt
		}
		week := WeekStart(event.OccurredAt)
		agg, ok := byWeek[week]
		if !ok {
			agg = &weekAgg{
				users:    make(map[string]struct{}),
				features: make(map[string]struct{}),
			}
			byWeek[week] = agg
		}
		agg.count++
		if user := event.UserID(); user != "" {
			agg.users[user] = struct{}{}
		}
		if event.FeatureName != "" {
			agg.features[event.FeatureName] = struct{}{}
		}
	}

	start := WeekStart(earliest)
	end := WeekStart(now)
	if end.Before(start) {
		end = start
	}

	var buckets []WeeklyBucket
	for week := start; !week.After(end); week = week.AddDate(0, 0, 7) {
		bucket := WeeklyBucket{PeriodStart: week, Direction: DirectionStable}
		if agg, ok := byWeek[week]; ok {
			bucket.EventCount = agg.count
			bucket.UniqueUsers = len(agg.users)
			bucket.UniqueFeatures = len(agg.features)
		}
		buckets = append(buckets, bucket)
	}

	classifyDirections(buckets)
	return buckets
}

// classifyDirections marks each week against the previous one. The first
// week has no comparison and stays stable.
func classifyDirections(buckets []WeeklyBucket) {
	for i := 1; i < len(buckets); i++ {
		prev := float64(buckets[i-1].EventCount)
		curr := float64(buckets[i].EventCount)
		switch {
		case curr > prev*(1+stableBand):
			buckets[i].Direction = DirectionIncreasing
		case curr < prev*(1-stableBand):
			buckets[i].Direction = DirectionDecreasing
		default:
			buckets[i].Direction = DirectionStable
		}
	}
}

// Counts extracts the weekly event counts in chronological order.
func Counts(buckets []WeeklyBucket) []float64 {
	counts := make([]float64, len(buckets))
	for i, bucket := range buckets {
		counts[i] = float64(bucket.EventCount)
	}
	return counts
}

// SortEventsByTime orders events chronologically in place. The event store
// returns windows in arbitrary order; engines that need ordering call this.
func SortEventsByTime(events []eventdomain.UsageEvent) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].OccurredAt.Before(events[j].OccurredAt)
	})
}
