// Package domain defines multi-vector expansion opportunity scoring:
// four fixed upsell vectors plus detected signals folded into a single
// likelihood score and horizon.
package domain

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidSeatCount = errors.New("invalid_seat_count")

// The four expansion vectors, always all present in a prediction.
const (
	VectorSeatGrowth      = "seat_growth"
	VectorAddOns          = "add_ons"
	VectorFeatureUpgrades = "feature_upgrades"
	VectorUsageBased      = "usage_based"
)

type Horizon string

const (
	HorizonReadyNow   Horizon = "ready_now"
	HorizonLikelySoon Horizon = "likely_soon"
	HorizonPotential  Horizon = "potential"
	HorizonNotLikely  Horizon = "not_likely"
)

type SignalStrength string

const (
	SignalStrong   SignalStrength = "strong"
	SignalModerate SignalStrength = "moderate"
	SignalWeak     SignalStrength = "weak"
)

// SeatLicense persists the externally supplied licensed seat count.
type SeatLicense struct {
	CompanyID     string    `gorm:"primaryKey;type:text" json:"company_id"`
	LicensedSeats int       `gorm:"not null" json:"licensed_seats"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (SeatLicense) TableName() string { return "seat_licenses" }

// SeatUtilization combines license data with 30-day unique-user counts.
type SeatUtilization struct {
	CurrentSeats       int `json:"current_seats"`
	LicensedSeats      int `json:"licensed_seats"`
	UtilizationPercent int `json:"utilization_percent"`
	PowerUsers         int `json:"power_users"`
}

type VectorScore struct {
	Type       string  `json:"type"`
	Score      int     `json:"score"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

type Signal struct {
	Type        string         `json:"type"`
	Strength    SignalStrength `json:"strength"`
	Description string         `json:"description"`
	DetectedAt  time.Time      `json:"detected_at"`
}

// Prediction is the full expansion result for one company.
type Prediction struct {
	CompanyID       string          `json:"company_id"`
	Score           int             `json:"score"`
	Horizon         Horizon         `json:"horizon"`
	Vectors         []VectorScore   `json:"vectors"`
	Signals         []Signal        `json:"signals"`
	Utilization     SeatUtilization `json:"utilization"`
	Recommendations []string        `json:"recommendations"`
	CalculatedAt    time.Time       `json:"calculated_at"`
}

type Service interface {
	Predict(ctx context.Context, companyID string) (*Prediction, error)
	// BatchPredict returns one result per company id, in input order.
	BatchPredict(ctx context.Context, companyIDs []string) ([]Prediction, error)
	SetSeatLicense(ctx context.Context, companyID string, licensedSeats int) error
}
