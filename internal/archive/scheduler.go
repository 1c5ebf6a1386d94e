package archive

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// SystemActorID is the actor recorded for scheduler-initiated archive runs
const SystemActorID = "system-scheduler"

// runTimeout bounds a single scheduled archive run
const runTimeout = 5 * time.Minute

// Scheduler runs the archiving rules on a cron schedule
type Scheduler struct {
	logger    *zap.Logger
	cron      *cron.Cron
	evaluator *Evaluator
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// NewScheduler creates an archive scheduler around the evaluator
func NewScheduler(logger *zap.Logger, evaluator *Evaluator) *Scheduler {
	adapted := &cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		logger:    logger.Named("archive-scheduler"),
		cron:      cron.New(cron.WithChain(cron.Recover(adapted))),
		evaluator: evaluator,
	}
}

// Start registers the archive job under the given cron expression and
// starts the schedule
func (s *Scheduler) Start(expression string) error {
	if _, err := s.cron.AddFunc(expression, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Archive schedule started", zap.String("expression", expression))
	return nil
}

// Stop stops the schedule and waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	results, err := s.evaluator.ExecuteRules(ctx, SystemActorID)
	if err != nil {
		s.logger.Error("Scheduled archive run failed", zap.Error(err))
		return
	}

	var total int64
	failures := 0
	for _, result := range results {
		total += result.ArchivedCount
		if result.Error != "" {
			failures++
		}
	}

	s.logger.Info("Scheduled archive run completed",
		zap.Int("rules", len(results)),
		zap.Int64("archived", total),
		zap.Int("failed_rules", failures))
}
