package archive

// Rule selects stale low-value rows for bulk archival. Rules are
// compiled into the binary; the predicate fragments never carry user
// input.
type Rule struct {
	Name           string
	Table          string
	AgeColumn      string
	ExtraPredicate string
	Days           int
	Description    string
}

// DefaultRules is the standing rule table
var DefaultRules = []Rule{
	{
		Name:        "weather-expired",
		Table:       "weather_alerts",
		AgeColumn:   "expires",
		Days:        7,
		Description: "Weather alerts expired more than 7 days ago",
	},
	{
		Name:           "immigration-routine",
		Table:          "immigration_announcements",
		AgeColumn:      "created_at",
		ExtraPredicate: "category IN ('routine', 'administrative')",
		Days:           30,
		Description:    "Routine and administrative immigration announcements older than 30 days",
	},
	{
		Name:           "security-minor",
		Table:          "security_alerts",
		AgeColumn:      "created_at",
		ExtraPredicate: "category = 'minor'",
		Days:           14,
		Description:    "Minor security alerts older than 14 days",
	},
}
