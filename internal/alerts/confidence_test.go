package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/travelsafe/security-barometer/internal/model"
)

func completeAlert() model.NormalizedAlert {
	return model.NormalizedAlert{
		ID:          "a1",
		Source:      "Environment Canada",
		Title:       "Flood warning for downtown core",
		Description: "Heavy flooding expected in low-lying areas.",
		Severity:    model.SeveritySevere,
		Urgency:     model.UrgencyImmediate,
		Status:      model.StatusActual,
		Area:        "Toronto",
		Published:   "2024-05-01T08:30:00Z",
	}
}

func sparseAlert() model.NormalizedAlert {
	return model.NormalizedAlert{
		ID:          "a2",
		Source:      "Community Watch",
		Title:       UntitledAlert,
		Description: NoDescriptionAvailable,
		Severity:    model.SeverityUnknown,
		Urgency:     model.UrgencyUnknown,
		Status:      model.StatusUnknown,
		Area:        model.AreaNotSpecified,
		Published:   "2024-05-01T08:30:00Z",
	}
}

func TestIsAuthoritativeSource(t *testing.T) {
	assert.True(t, IsAuthoritativeSource("Environment Canada"))
	assert.True(t, IsAuthoritativeSource("RSS - Environment Canada Weather"))
	assert.True(t, IsAuthoritativeSource("alert ready broadcast"))
	assert.True(t, IsAuthoritativeSource("Public Safety Canada / RCMP"))
	assert.False(t, IsAuthoritativeSource("Community Watch"))
	assert.False(t, IsAuthoritativeSource(""))
}

func TestEnhanceAlertCompleteAuthoritative(t *testing.T) {
	// Five completeness bonuses take the base to 1.0; the authoritative
	// bonus pushes past it and the clamp brings it back to 1.0.
	enhanced := EnhanceAlert(completeAlert(), DefaultConfidenceConfig())

	assert.True(t, enhanced.IsFromAuthoritativeSource)
	assert.Equal(t, 1.0, enhanced.DataQualityScore)
	assert.Equal(t, model.ConfidenceHigh, enhanced.ConfidenceLevel)
}

func TestEnhanceAlertSparse(t *testing.T) {
	// 0.5 + 0.1 (published) - 0.2 (no description) - 0.1 (no area)
	// - 0.1 (unknown severity) = 0.2
	enhanced := EnhanceAlert(sparseAlert(), DefaultConfidenceConfig())

	assert.False(t, enhanced.IsFromAuthoritativeSource)
	assert.InDelta(t, 0.2, enhanced.DataQualityScore, 1e-9)
	assert.Equal(t, model.ConfidenceVeryLow, enhanced.ConfidenceLevel)
}

func TestEnhanceAlertShortDescriptionPenalty(t *testing.T) {
	alert := completeAlert()
	alert.Source = "Community Watch"
	alert.Description = "Flooding."

	enhanced := EnhanceAlert(alert, DefaultConfidenceConfig())

	// Title+description bonus still applies, but the short-description
	// penalty is charged independently: 0.5 + 0.5 - 0.2 = 0.8
	assert.InDelta(t, 0.8, enhanced.DataQualityScore, 1e-9)
}

func TestEnhanceAlertScoreBounded(t *testing.T) {
	variants := []model.NormalizedAlert{
		completeAlert(),
		sparseAlert(),
		{ID: "x", Source: "Government of Canada"},
		{ID: "y", Source: "", Severity: model.SeverityUnknown},
	}

	cfg := DefaultConfidenceConfig()
	for _, alert := range variants {
		enhanced := EnhanceAlert(alert, cfg)
		assert.GreaterOrEqual(t, enhanced.DataQualityScore, 0.0)
		assert.LessOrEqual(t, enhanced.DataQualityScore, 1.0)
	}
}

func TestEnhanceAlertMonotonicCompleteness(t *testing.T) {
	sparse := sparseAlert()
	full := completeAlert()
	full.Source = sparse.Source

	cfg := DefaultConfidenceConfig()
	assert.GreaterOrEqual(t,
		EnhanceAlert(full, cfg).DataQualityScore,
		EnhanceAlert(sparse, cfg).DataQualityScore)
}

func TestEnhanceAlertDeterministic(t *testing.T) {
	cfg := DefaultConfidenceConfig()
	first := EnhanceAlert(completeAlert(), cfg)
	second := EnhanceAlert(completeAlert(), cfg)
	assert.Equal(t, first, second)
}

func TestBucketConfidenceCustomThresholds(t *testing.T) {
	cfg := ConfidenceConfig{
		MinDisplayThreshold:       0.1,
		HighConfidenceThreshold:   0.9,
		MediumConfidenceThreshold: 0.5,
		LowConfidenceThreshold:    0.2,
	}

	assert.Equal(t, model.ConfidenceHigh, bucketConfidence(0.95, cfg))
	assert.Equal(t, model.ConfidenceMedium, bucketConfidence(0.6, cfg))
	assert.Equal(t, model.ConfidenceLow, bucketConfidence(0.3, cfg))
	assert.Equal(t, model.ConfidenceVeryLow, bucketConfidence(0.1, cfg))

	// Thresholds are inclusive
	assert.Equal(t, model.ConfidenceHigh, bucketConfidence(0.9, cfg))
	assert.Equal(t, model.ConfidenceMedium, bucketConfidence(0.5, cfg))
	assert.Equal(t, model.ConfidenceLow, bucketConfidence(0.2, cfg))
}

func TestEnhanceAlerts(t *testing.T) {
	cfg := DefaultConfidenceConfig()
	enhanced := EnhanceAlerts([]model.NormalizedAlert{completeAlert(), sparseAlert()}, cfg)

	assert.Len(t, enhanced, 2)
	assert.Equal(t, model.ConfidenceHigh, enhanced[0].ConfidenceLevel)
	assert.Equal(t, model.ConfidenceVeryLow, enhanced[1].ConfidenceLevel)
}
