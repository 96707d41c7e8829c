package domain

// Template is the fixed activation path. Weights sum to 1.0; this is a
// construction invariant covered by tests.
var Template = []MilestoneTemplate{
	{Name: "account_created", ExpectedByDay: 0, IsAhaMoment: false, Weight: 0.05},
	{Name: "first_login", ExpectedByDay: 1, IsAhaMoment: false, Weight: 0.10},
	{Name: "profile_completed", ExpectedByDay: 3, IsAhaMoment: false, Weight: 0.05},
	{Name: "team_invited", ExpectedByDay: 5, IsAhaMoment: false, Weight: 0.10},
	{Name: "first_project_created", ExpectedByDay: 7, IsAhaMoment: false, Weight: 0.10},
	{Name: "integration_connected", ExpectedByDay: 10, IsAhaMoment: true, Weight: 0.15},
	{Name: "first_report_generated", ExpectedByDay: 12, IsAhaMoment: true, Weight: 0.15},
	{Name: "workflow_automated", ExpectedByDay: 14, IsAhaMoment: true, Weight: 0.15},
	{Name: "weekly_active_streak", ExpectedByDay: 21, IsAhaMoment: false, Weight: 0.15},
}

// EventTypeMilestones maps ingested event types to the milestone they
// complete. An event type maps to at most one milestone.
var EventTypeMilestones = map[string]string{
	"account_created":       "account_created",
	"login":                 "first_login",
	"profile_updated":       "profile_completed",
	"invite_sent":           "team_invited",
	"member_joined":         "team_invited",
	"integration_connected": "integration_connected",
	"project_created":       "first_project_created",
	"report_generated":      "first_report_generated",
	"automation_enabled":    "workflow_automated",
	"streak_reached":        "weekly_active_streak",
}

// FeatureMilestones maps feature names to milestones, evaluated
// independently of the event-type mapping.
var FeatureMilestones = map[string]string{
	"integrations": "integration_connected",
	"projects":     "first_project_created",
	"reports":      "first_report_generated",
	"automations":  "workflow_automated",
	"team":         "team_invited",
}
