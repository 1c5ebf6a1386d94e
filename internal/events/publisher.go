package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/model"
)

const (
	// StreamName is the JetStream stream carrying incident events
	StreamName = "INCIDENTS"

	// SubjectIncidentCreated announces newly persisted incidents
	SubjectIncidentCreated = "incident.created"

	// SubjectIncidentArchived announces bulk-archive runs
	SubjectIncidentArchived = "incident.archived"
)

// ArchiveEvent describes one completed bulk-archive operation
type ArchiveEvent struct {
	Table         string    `json:"table"`
	ArchivedCount int64     `json:"archived_count"`
	Reason        string    `json:"reason"`
	ActorID       string    `json:"actor_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher announces incident lifecycle events on JetStream for
// dashboard consumers
type Publisher struct {
	logger *zap.Logger
	js     nats.JetStreamContext
}

// NewPublisher creates a publisher over an existing JetStream context
func NewPublisher(logger *zap.Logger, js nats.JetStreamContext) *Publisher {
	return &Publisher{
		logger: logger.Named("events"),
		js:     js,
	}
}

// Start ensures the incident stream exists
func (p *Publisher) Start() error {
	stream, err := p.js.StreamInfo(StreamName)
	if err != nil && err != nats.ErrStreamNotFound {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	if stream == nil {
		_, err = p.js.AddStream(&nats.StreamConfig{
			Name:     StreamName,
			Subjects: []string{"incident.*"},
			Storage:  nats.FileStorage,
			MaxAge:   7 * 24 * time.Hour,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		p.logger.Info("Created incident event stream", zap.String("name", StreamName))
	}

	return nil
}

// IncidentCreated publishes a newly created incident
func (p *Publisher) IncidentCreated(_ context.Context, incident *model.Incident) error {
	data, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident: %w", err)
	}

	if _, err := p.js.Publish(SubjectIncidentCreated, data); err != nil {
		return fmt.Errorf("failed to publish incident event: %w", err)
	}

	p.logger.Debug("Published incident created event",
		zap.String("incident_id", incident.ID),
		zap.String("alert_level", string(incident.AlertLevel)))
	return nil
}

// IncidentsArchived publishes the outcome of a bulk-archive operation
func (p *Publisher) IncidentsArchived(_ context.Context, event ArchiveEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal archive event: %w", err)
	}

	if _, err := p.js.Publish(SubjectIncidentArchived, data); err != nil {
		return fmt.Errorf("failed to publish archive event: %w", err)
	}

	p.logger.Debug("Published archive event",
		zap.String("table", event.Table),
		zap.Int64("archived", event.ArchivedCount))
	return nil
}
