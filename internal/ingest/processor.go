package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/alerts"
	"github.com/travelsafe/security-barometer/internal/model"
	"github.com/travelsafe/security-barometer/internal/monitor"
	"github.com/travelsafe/security-barometer/internal/storage"
)

const (
	// DedupWindow is how far back the duplicate check looks
	DedupWindow = 24 * time.Hour

	// DedupTitleFragmentLength is how many leading title characters the
	// duplicate check matches on
	DedupTitleFragmentLength = 30

	// ExternalConfidenceScore is the fixed confidence persisted for all
	// externally sourced incidents. Deliberately independent of the
	// richer data quality score computed for display.
	ExternalConfidenceScore = 0.7

	// DefaultProvinceCode is used when no province is configured
	DefaultProvinceCode = "ON"
)

// IntegrationConfig controls how external alerts become incidents
type IntegrationConfig struct {
	AutoCreateIncidents bool                                `mapstructure:"auto_create_incidents"`
	SeverityMapping     map[model.Severity]model.AlertLevel `mapstructure:"-"`
	DefaultProvinceID   string                              `mapstructure:"default_province_id"`
}

// DefaultIntegrationConfig returns the standard integration settings
func DefaultIntegrationConfig() IntegrationConfig {
	return IntegrationConfig{
		AutoCreateIncidents: true,
		SeverityMapping:     DefaultSeverityMapping(),
	}
}

// DefaultSeverityMapping is the standard 5-to-3 level severity reduction
func DefaultSeverityMapping() map[model.Severity]model.AlertLevel {
	return map[model.Severity]model.AlertLevel{
		model.SeverityExtreme:  model.AlertLevelSevere,
		model.SeveritySevere:   model.AlertLevelSevere,
		model.SeverityModerate: model.AlertLevelWarning,
		model.SeverityMinor:    model.AlertLevelNormal,
	}
}

// sourceMapping maps known feed names onto incident sources. Anything
// else is treated as a manual entry.
var sourceMapping = map[string]model.IncidentSource{
	"Alert Ready":  model.IncidentSourceGovernment,
	"BC Emergency": model.IncidentSourceBCAlerts,
	"Everbridge":   model.IncidentSourceEverbridge,
}

// severityOrdinals is the fixed 1-4 ordinal scale persisted with incidents
var severityOrdinals = map[model.Severity]int{
	model.SeverityExtreme:  4,
	model.SeveritySevere:   3,
	model.SeverityModerate: 2,
	model.SeverityMinor:    1,
}

// EventPublisher announces incident lifecycle events
type EventPublisher interface {
	IncidentCreated(ctx context.Context, incident *model.Incident) error
}

// Processor maps external alerts onto incidents, suppressing duplicates
type Processor struct {
	logger  *zap.Logger
	store   storage.IncidentStore
	journal Journal
	events  EventPublisher
	metrics *monitor.Metrics
	config  IntegrationConfig
}

// NewProcessor creates an ingest processor. journal, events and metrics
// may be nil.
func NewProcessor(logger *zap.Logger, store storage.IncidentStore, journal Journal, events EventPublisher, metrics *monitor.Metrics, config IntegrationConfig) *Processor {
	if config.SeverityMapping == nil {
		config.SeverityMapping = DefaultSeverityMapping()
	}
	return &Processor{
		logger:  logger.Named("ingest"),
		store:   store,
		journal: journal,
		events:  events,
		metrics: metrics,
		config:  config,
	}
}

// ProcessExternalAlert maps one raw alert onto an incident. It returns
// the id of the created incident, the id of an existing duplicate, or
// the empty string when incident auto-creation is disabled.
func (p *Processor) ProcessExternalAlert(ctx context.Context, raw model.UniversalAlert) (string, error) {
	if !p.config.AutoCreateIncidents {
		p.record(ctx, raw, OutcomeSkipped, "", "")
		return "", nil
	}

	if p.metrics != nil {
		p.metrics.AlertsIngested.Inc()
	}

	normalized := alerts.NormalizeAlert(raw, p.logger)
	incident := p.mapToIncident(raw, normalized)

	// Truncate on runes so a multibyte character at the boundary cannot
	// produce an invalid fragment
	fragment := normalized.Title
	if runes := []rune(fragment); len(runes) > DedupTitleFragmentLength {
		fragment = string(runes[:DedupTitleFragmentLength])
	}

	existing, err := p.store.FindRecentIncidentByTitle(ctx, fragment, time.Now().Add(-DedupWindow))
	if err != nil {
		p.record(ctx, raw, OutcomeFailed, "", err.Error())
		return "", fmt.Errorf("dedup lookup failed: %w", err)
	}
	if existing != nil {
		p.logger.Debug("Duplicate alert suppressed",
			zap.String("alert_id", raw.ID),
			zap.String("incident_id", existing.ID),
			zap.String("title_fragment", fragment))
		if p.metrics != nil {
			p.metrics.DuplicatesSuppressed.Inc()
		}
		p.record(ctx, raw, OutcomeDuplicate, existing.ID, "")
		return existing.ID, nil
	}

	id, err := p.store.InsertIncident(ctx, incident)
	if err != nil {
		p.record(ctx, raw, OutcomeFailed, "", err.Error())
		return "", fmt.Errorf("incident insert failed: %w", err)
	}

	p.logger.Info("Incident created from external alert",
		zap.String("incident_id", id),
		zap.String("alert_id", raw.ID),
		zap.String("source", raw.Source),
		zap.String("alert_level", string(incident.AlertLevel)))

	if p.metrics != nil {
		p.metrics.IncidentsCreated.Inc()
	}
	p.record(ctx, raw, OutcomeCreated, id, "")

	if p.events != nil {
		if err := p.events.IncidentCreated(ctx, incident); err != nil {
			// Event delivery is best-effort; the incident is already persisted
			p.logger.Warn("Failed to publish incident event",
				zap.String("incident_id", id),
				zap.Error(err))
		}
	}

	return id, nil
}

// BatchProcessAlerts processes alerts strictly in input order and
// collects the created or matched incident ids. Individual failures are
// logged and do not abort the batch.
func (p *Processor) BatchProcessAlerts(ctx context.Context, rawAlerts []model.UniversalAlert) []string {
	ids := make([]string, 0, len(rawAlerts))
	for _, raw := range rawAlerts {
		id, err := p.ProcessExternalAlert(ctx, raw)
		if err != nil {
			p.logger.Error("Failed to process alert in batch",
				zap.String("alert_id", raw.ID),
				zap.String("source", raw.Source),
				zap.Error(err))
			continue
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// mapToIncident builds the incident-shaped record for a normalized alert
func (p *Processor) mapToIncident(raw model.UniversalAlert, normalized model.NormalizedAlert) *model.Incident {
	province := p.config.DefaultProvinceID
	if province == "" {
		province = DefaultProvinceCode
	}

	timestamp, err := time.Parse(time.RFC3339, normalized.Published)
	if err != nil {
		timestamp = time.Now().UTC()
	}

	rawPayload, err := json.Marshal(raw)
	if err != nil {
		// The raw alert came out of a JSON decoder, so this should not
		// happen; the incident is still usable without provenance.
		p.logger.Warn("Failed to marshal alert provenance", zap.Error(err))
		rawPayload = nil
	}

	return &model.Incident{
		Title:              normalized.Title,
		Description:        normalized.Description,
		ProvinceCode:       province,
		Timestamp:          timestamp,
		AlertLevel:         p.alertLevelFor(normalized.Severity),
		Source:             incidentSourceFor(raw.Source),
		VerificationStatus: model.VerificationUnverified,
		ConfidenceScore:    ExternalConfidenceScore,
		RawPayload:         rawPayload,
		GeographicScope:    normalized.Area,
		SeverityNumeric:    severityOrdinalFor(normalized.Severity),
	}
}

func (p *Processor) alertLevelFor(severity model.Severity) model.AlertLevel {
	if level, ok := p.config.SeverityMapping[severity]; ok {
		return level
	}
	return model.AlertLevelNormal
}

func incidentSourceFor(source string) model.IncidentSource {
	if mapped, ok := sourceMapping[source]; ok {
		return mapped
	}
	return model.IncidentSourceManual
}

func severityOrdinalFor(severity model.Severity) int {
	if ordinal, ok := severityOrdinals[severity]; ok {
		return ordinal
	}
	return 1
}

// record writes a journal entry; journal failures are logged, never raised
func (p *Processor) record(ctx context.Context, raw model.UniversalAlert, outcome Outcome, incidentID, errMsg string) {
	if p.journal == nil {
		return
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		payload = nil
	}

	entry := &JournalEntry{
		AlertID:    raw.ID,
		Source:     raw.Source,
		Outcome:    outcome,
		IncidentID: incidentID,
		Error:      errMsg,
		RawPayload: payload,
	}
	if err := p.journal.Record(ctx, entry); err != nil {
		p.logger.Warn("Failed to record journal entry",
			zap.String("alert_id", raw.ID),
			zap.Error(err))
	}
}
