package alerts

import (
	"strings"

	"github.com/travelsafe/security-barometer/internal/model"
)

// AuthoritativeSources are originators granted an automatic confidence
// boost. Matching is case-insensitive substring containment.
var AuthoritativeSources = []string{
	"Alert Ready",
	"Environment Canada",
	"Environment and Climate Change Canada",
	"BC Emergency",
	"Government of Canada",
	"Immigration Refugees and Citizenship Canada",
	"Public Safety Canada",
}

// ConfidenceConfig holds the scoring and display thresholds. All five
// options are configuration, not constants.
type ConfidenceConfig struct {
	MinDisplayThreshold       float64 `mapstructure:"min_display_threshold"`
	HighConfidenceThreshold   float64 `mapstructure:"high_confidence_threshold"`
	MediumConfidenceThreshold float64 `mapstructure:"medium_confidence_threshold"`
	LowConfidenceThreshold    float64 `mapstructure:"low_confidence_threshold"`
	AutoHideBelow             float64 `mapstructure:"auto_hide_below"`
}

// DefaultConfidenceConfig returns the standard thresholds
func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		MinDisplayThreshold:       0.3,
		HighConfidenceThreshold:   0.8,
		MediumConfidenceThreshold: 0.6,
		LowConfidenceThreshold:    0.4,
		AutoHideBelow:             0.3,
	}
}

// IsAuthoritativeSource reports whether the source string contains any
// known authoritative source name
func IsAuthoritativeSource(source string) bool {
	lower := strings.ToLower(source)
	for _, name := range AuthoritativeSources {
		if strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

func hasTitle(alert model.NormalizedAlert) bool {
	return alert.Title != "" && alert.Title != UntitledAlert
}

func hasDescription(alert model.NormalizedAlert) bool {
	return alert.Description != "" && alert.Description != NoDescriptionAvailable
}

func hasArea(alert model.NormalizedAlert) bool {
	return alert.Area != "" && alert.Area != "Unknown" && alert.Area != model.AreaNotSpecified
}

// EnhanceAlert computes the data quality projection for a normalized
// alert. Pure and deterministic: the same alert and config always yield
// the same score.
//
// The base confidence starts at 0.5 and every adjustment applies
// independently; the running value is clamped to [0,1] only at the end,
// after the authoritative bonus.
func EnhanceAlert(alert model.NormalizedAlert, cfg ConfidenceConfig) model.AlertWithConfidence {
	authoritative := IsAuthoritativeSource(alert.Source)

	base := 0.5
	if hasTitle(alert) && hasDescription(alert) {
		base += 0.1
	}
	if alert.Published != "" {
		base += 0.1
	}
	if hasArea(alert) {
		base += 0.1
	}
	if alert.Severity != model.SeverityUnknown {
		base += 0.1
	}
	if alert.Urgency != model.UrgencyUnknown {
		base += 0.1
	}
	if !hasDescription(alert) || len(alert.Description) < 10 {
		base -= 0.2
	}
	if !hasArea(alert) {
		base -= 0.1
	}
	if alert.Severity == model.SeverityUnknown {
		base -= 0.1
	}

	if authoritative {
		base += 0.2
	}
	score := clamp01(base)

	return model.AlertWithConfidence{
		NormalizedAlert:           alert,
		DataQualityScore:          score,
		ConfidenceLevel:           bucketConfidence(score, cfg),
		IsFromAuthoritativeSource: authoritative,
	}
}

// EnhanceAlerts scores a fresh alert list. The projection is stateless;
// every call recomputes from scratch.
func EnhanceAlerts(alertList []model.NormalizedAlert, cfg ConfidenceConfig) []model.AlertWithConfidence {
	enhanced := make([]model.AlertWithConfidence, 0, len(alertList))
	for _, alert := range alertList {
		enhanced = append(enhanced, EnhanceAlert(alert, cfg))
	}
	return enhanced
}

func bucketConfidence(score float64, cfg ConfidenceConfig) model.ConfidenceLevel {
	switch {
	case score >= cfg.HighConfidenceThreshold:
		return model.ConfidenceHigh
	case score >= cfg.MediumConfidenceThreshold:
		return model.ConfidenceMedium
	case score >= cfg.LowConfidenceThreshold:
		return model.ConfidenceLow
	default:
		return model.ConfidenceVeryLow
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
