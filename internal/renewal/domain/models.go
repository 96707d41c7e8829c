// Package domain defines the renewal health score contract. Score objects
// are value types computed fresh on every call and never cached.
package domain

import "time"

type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNeutral  Impact = "neutral"
	ImpactNegative Impact = "negative"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ScoreFactor is one weighted component of the overall health score.
type ScoreFactor struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
	Impact      Impact  `json:"impact"`
	Description string  `json:"description"`
}

// HealthScore is the renewal-risk rollup for one company.
// Score == round(sum of factor.Value * factor.Weight) always holds.
type HealthScore struct {
	CompanyID       string        `json:"company_id"`
	Score           int           `json:"score"`
	RiskLevel       RiskLevel     `json:"risk_level"`
	Factors         []ScoreFactor `json:"factors"`
	Recommendations []string      `json:"recommendations"`
	CalculatedAt    time.Time     `json:"calculated_at"`
}
