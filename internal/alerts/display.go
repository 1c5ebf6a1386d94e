package alerts

import (
	"sort"
	"time"

	"github.com/travelsafe/security-barometer/internal/model"
)

// WarningLevel drives the visual treatment of a low-trust alert
type WarningLevel string

const (
	WarningNone     WarningLevel = "none"
	WarningInfo     WarningLevel = "info"
	WarningWarning  WarningLevel = "warning"
	WarningCritical WarningLevel = "critical"
)

// DisplayConfig is the set of UI-facing flags derived from an alert's
// confidence level and source
type DisplayConfig struct {
	ShowConfidenceBadge  bool         `json:"show_confidence_badge"`
	RequiresVerification bool         `json:"requires_verification"`
	AutoArchiveEligible  bool         `json:"auto_archive_eligible"`
	VisualPriority       int          `json:"visual_priority"`
	WarningLevel         WarningLevel `json:"warning_level"`
}

// FilterByConfidence drops alerts below the display bar. An alert
// passes when includeVeryLow is set or its level is not very-low; past
// that, an authoritative non-very-low alert always passes, and the
// remainder must clear the raw MinDisplayThreshold. The authoritative
// override is evaluated before the raw-threshold check.
func FilterByConfidence(alertList []model.AlertWithConfidence, cfg ConfidenceConfig, includeVeryLow bool) []model.AlertWithConfidence {
	filtered := make([]model.AlertWithConfidence, 0, len(alertList))
	for _, alert := range alertList {
		if !includeVeryLow && alert.ConfidenceLevel == model.ConfidenceVeryLow {
			continue
		}
		if alert.IsFromAuthoritativeSource && alert.ConfidenceLevel != model.ConfidenceVeryLow {
			filtered = append(filtered, alert)
			continue
		}
		if alert.DataQualityScore >= cfg.MinDisplayThreshold {
			filtered = append(filtered, alert)
		}
	}
	return filtered
}

// GetDisplayConfig derives the UI flags for a scored alert
func GetDisplayConfig(alert model.AlertWithConfidence) DisplayConfig {
	return DisplayConfig{
		ShowConfidenceBadge:  !(alert.IsFromAuthoritativeSource && alert.ConfidenceLevel != model.ConfidenceLow),
		RequiresVerification: alert.ConfidenceLevel == model.ConfidenceLow && !alert.IsFromAuthoritativeSource,
		AutoArchiveEligible:  alert.ConfidenceLevel == model.ConfidenceVeryLow && !alert.IsFromAuthoritativeSource,
		VisualPriority:       VisualPriority(alert),
		WarningLevel:         ResolveWarningLevel(alert),
	}
}

// VisualPriority computes the additive sort weight for an alert.
// Higher sorts first; the final value is floored at zero.
func VisualPriority(alert model.AlertWithConfidence) int {
	priority := 0
	if alert.IsFromAuthoritativeSource {
		priority += 3
	}

	switch alert.ConfidenceLevel {
	case model.ConfidenceHigh:
		priority += 4
	case model.ConfidenceMedium:
		priority += 2
	case model.ConfidenceLow:
		priority += 1
	case model.ConfidenceVeryLow:
		priority -= 1
	}

	switch alert.Severity {
	case model.SeverityExtreme:
		priority += 4
	case model.SeveritySevere:
		priority += 3
	case model.SeverityModerate:
		priority += 1
	}

	if priority < 0 {
		priority = 0
	}
	return priority
}

// ResolveWarningLevel applies the warning decision table, first match wins
func ResolveWarningLevel(alert model.AlertWithConfidence) WarningLevel {
	switch {
	case alert.IsFromAuthoritativeSource && alert.ConfidenceLevel == model.ConfidenceHigh:
		return WarningNone
	case alert.ConfidenceLevel == model.ConfidenceVeryLow:
		return WarningCritical
	case alert.ConfidenceLevel == model.ConfidenceLow && !alert.IsFromAuthoritativeSource:
		return WarningWarning
	case !alert.IsFromAuthoritativeSource:
		return WarningInfo
	default:
		return WarningNone
	}
}

// SortByPriority orders a filtered alert list in place: visual priority
// descending, most recently published first on ties.
func SortByPriority(alertList []model.AlertWithConfidence) {
	sort.SliceStable(alertList, func(i, j int) bool {
		pi, pj := VisualPriority(alertList[i]), VisualPriority(alertList[j])
		if pi != pj {
			return pi > pj
		}
		return publishedTime(alertList[i]).After(publishedTime(alertList[j]))
	})
}

func publishedTime(alert model.AlertWithConfidence) time.Time {
	t, err := time.Parse(time.RFC3339, alert.Published)
	if err != nil {
		return time.Time{}
	}
	return t
}
