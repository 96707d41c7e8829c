// Package domain contains persistence models for raw product-usage ingestion.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// UsageEvent stores a single immutable product-usage fact. Events are
// append-only and keyed by company; scoring engines only ever read them.
type UsageEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"event_id"`
	CompanyID   string            `gorm:"type:text;not null;index:idx_usage_events_company_occurred" json:"company_id"`
	EventType   string            `gorm:"type:text;not null" json:"event_type"`
	FeatureName string            `gorm:"type:text" json:"feature_name,omitempty"`
	OccurredAt  time.Time         `gorm:"not null;index:idx_usage_events_company_occurred" json:"occurred_at"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }

// UserID extracts the acting user from event metadata. Empty when the
// event carries no user identity.
func (e UsageEvent) UserID() string {
	if e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata["userId"].(string); ok {
		return v
	}
	return ""
}
