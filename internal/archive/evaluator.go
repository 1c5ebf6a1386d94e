package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/events"
	"github.com/travelsafe/security-barometer/internal/monitor"
	"github.com/travelsafe/security-barometer/internal/storage"
)

// EventPublisher announces completed bulk-archive operations
type EventPublisher interface {
	IncidentsArchived(ctx context.Context, event events.ArchiveEvent) error
}

// ErrNoActor is returned when archiving is attempted without an
// authenticated actor. There is no safe default for who performed an
// archival, so this is a hard failure.
var ErrNoActor = errors.New("archiving requires an authenticated actor")

// RuleResult is the outcome of evaluating one archiving rule
type RuleResult struct {
	Rule          Rule   `json:"rule"`
	ArchivedCount int64  `json:"archived_count"`
	Error         string `json:"error,omitempty"`
}

// CandidateCount is a read-only preview of what a rule would archive
type CandidateCount struct {
	Rule  Rule `json:"rule"`
	Count int  `json:"count"`
}

// Evaluator runs the static archiving rules against the store
type Evaluator struct {
	logger  *zap.Logger
	store   storage.IncidentStore
	events  EventPublisher
	metrics *monitor.Metrics
	rules   []Rule
}

// NewEvaluator creates an evaluator over the given rule table. events
// and metrics may be nil.
func NewEvaluator(logger *zap.Logger, store storage.IncidentStore, eventPub EventPublisher, metrics *monitor.Metrics, rules []Rule) *Evaluator {
	return &Evaluator{
		logger:  logger.Named("archive"),
		store:   store,
		events:  eventPub,
		metrics: metrics,
		rules:   rules,
	}
}

// ExecuteRules evaluates every rule and bulk-archives the matches.
// Rules are isolated from each other: one failing rule is recorded with
// a zero count and does not block the rest. The result slice always has
// one entry per rule.
func (e *Evaluator) ExecuteRules(ctx context.Context, actorID string) ([]RuleResult, error) {
	if actorID == "" {
		return nil, ErrNoActor
	}

	if e.metrics != nil {
		e.metrics.ArchiveRuns.Inc()
	}

	results := make([]RuleResult, 0, len(e.rules))
	for _, rule := range e.rules {
		results = append(results, e.executeRule(ctx, rule, actorID))
	}
	return results, nil
}

func (e *Evaluator) executeRule(ctx context.Context, rule Rule, actorID string) RuleResult {
	result := RuleResult{Rule: rule}
	cutoff := time.Now().UTC().AddDate(0, 0, -rule.Days)

	ids, err := e.store.FindArchiveCandidates(ctx, rule.Table, rule.AgeColumn, cutoff, rule.ExtraPredicate)
	if err != nil {
		e.logger.Error("Failed to find archive candidates",
			zap.String("rule", rule.Name),
			zap.Error(err))
		result.Error = err.Error()
		return result
	}
	if len(ids) == 0 {
		return result
	}

	reason := fmt.Sprintf("Auto-archived: %s", rule.Description)
	count, err := e.store.BulkArchive(ctx, rule.Table, ids, reason, actorID)
	if err != nil {
		e.logger.Error("Bulk archive failed",
			zap.String("rule", rule.Name),
			zap.Int("candidates", len(ids)),
			zap.Error(err))
		result.Error = err.Error()
		return result
	}

	result.ArchivedCount = count
	if e.metrics != nil {
		e.metrics.RowsArchived.WithLabelValues(rule.Table).Add(float64(count))
	}

	if e.events != nil && count > 0 {
		if err := e.events.IncidentsArchived(ctx, events.ArchiveEvent{
			Table:         rule.Table,
			ArchivedCount: count,
			Reason:        reason,
			ActorID:       actorID,
		}); err != nil {
			// The rows are already archived; event delivery is best-effort
			e.logger.Warn("Failed to publish archive event",
				zap.String("rule", rule.Name),
				zap.Error(err))
		}
	}

	e.logger.Info("Archiving rule executed",
		zap.String("rule", rule.Name),
		zap.String("table", rule.Table),
		zap.Int64("archived", count))
	return result
}

// GetCandidates previews what each rule would archive without mutating
// anything, for the dashboard
func (e *Evaluator) GetCandidates(ctx context.Context) ([]CandidateCount, error) {
	counts := make([]CandidateCount, 0, len(e.rules))
	for _, rule := range e.rules {
		cutoff := time.Now().UTC().AddDate(0, 0, -rule.Days)
		ids, err := e.store.FindArchiveCandidates(ctx, rule.Table, rule.AgeColumn, cutoff, rule.ExtraPredicate)
		if err != nil {
			return nil, fmt.Errorf("candidate query failed for rule %s: %w", rule.Name, err)
		}
		counts = append(counts, CandidateCount{Rule: rule, Count: len(ids)})
	}
	return counts, nil
}
