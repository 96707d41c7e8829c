package trend

import (
	"sort"
	"time"

	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
)

// FeatureUsage summarizes adoption of one feature inside a window.
type FeatureUsage struct {
	Name     string    `json:"feature_name"`
	Count    int       `json:"usage_count"`
	LastUsed time.Time `json:"last_used"`
}

// BuildFeatureUsage derives the distinct-feature adoption list from a
// window of events, ordered by usage count descending.
func BuildFeatureUsage(events []eventdomain.UsageEvent) []FeatureUsage {
	byName := make(map[string]*FeatureUsage)
	for _, event := range events {
		if event.FeatureName == "" {
			continue
		}
		usage, ok := byName[event.FeatureName]
		if !ok {
			usage = &FeatureUsage{Name: event.FeatureName}
			byName[event.FeatureName] = usage
		}
		usage.Count++
		if event.OccurredAt.After(usage.LastUsed) {
			usage.LastUsed = event.OccurredAt
		}
	}

	features := make([]FeatureUsage, 0, len(byName))
	for _, usage := range byName {
		features = append(features, *usage)
	}
	sort.Slice(features, func(i, j int) bool {
		if features[i].Count != features[j].Count {
			return features[i].Count > features[j].Count
		}
		return features[i].Name < features[j].Name
	})
	return features
}
