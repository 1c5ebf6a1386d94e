package model

import (
	"encoding/json"
	"time"
)

// AlertLevel is the 3-level reduction of severity used on the dashboard
type AlertLevel string

const (
	AlertLevelNormal  AlertLevel = "normal"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelSevere  AlertLevel = "severe"
)

// IncidentSource identifies which integration produced an incident
type IncidentSource string

const (
	IncidentSourceGovernment IncidentSource = "government"
	IncidentSourceBCAlerts   IncidentSource = "bc_alerts"
	IncidentSourceEverbridge IncidentSource = "everbridge"
	IncidentSourceManual     IncidentSource = "manual"
)

// VerificationStatus marks whether an analyst has confirmed an incident
type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationUnverified VerificationStatus = "unverified"
)

// Incident is the persisted record derived from one or more alerts.
// RawPayload retains the original external alert for audit.
type Incident struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	ProvinceCode       string             `json:"province_code"`
	Timestamp          time.Time          `json:"timestamp"`
	AlertLevel         AlertLevel         `json:"alert_level"`
	Source             IncidentSource     `json:"source"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	ConfidenceScore    float64            `json:"confidence_score"`
	RawPayload         json.RawMessage    `json:"raw_payload,omitempty"`
	GeographicScope    string             `json:"geographic_scope,omitempty"`
	SeverityNumeric    int                `json:"severity_numeric"`
	Archived           bool               `json:"archived"`
	ArchivedAt         *time.Time         `json:"archived_at,omitempty"`
	ArchiveReason      string             `json:"archive_reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}
