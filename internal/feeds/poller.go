package feeds

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/travelsafe/security-barometer/internal/model"
	"github.com/travelsafe/security-barometer/internal/monitor"
)

const defaultPollInterval = 5 * time.Minute

// Fetcher retrieves one batch of alerts from a feed
type Fetcher interface {
	FetchAlerts(ctx context.Context, feed Feed) ([]model.UniversalAlert, error)
}

// BatchProcessor consumes a fetched alert batch
type BatchProcessor interface {
	BatchProcessAlerts(ctx context.Context, rawAlerts []model.UniversalAlert) []string
}

// PolledFeed is a feed plus its polling cadence
type PolledFeed struct {
	Feed     Feed
	Interval time.Duration
}

// Poller runs one goroutine per feed, pushing each fetched batch
// through the ingest pipeline. A failing feed never blocks the others.
type Poller struct {
	logger    *zap.Logger
	client    Fetcher
	processor BatchProcessor
	metrics   *monitor.Metrics
	cache     *Cache
	feeds     []PolledFeed

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller. metrics and cache may be nil.
func NewPoller(logger *zap.Logger, client Fetcher, processor BatchProcessor, metrics *monitor.Metrics, cache *Cache, feeds []PolledFeed) *Poller {
	return &Poller{
		logger:    logger.Named("poller"),
		client:    client,
		processor: processor,
		metrics:   metrics,
		cache:     cache,
		feeds:     feeds,
	}
}

// Start launches the polling loops. Each feed polls once immediately
// and then on its own ticker.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for _, polled := range p.feeds {
		if polled.Interval <= 0 {
			polled.Interval = defaultPollInterval
		}

		p.wg.Add(1)
		go p.loop(ctx, polled)
	}

	p.logger.Info("Feed polling started", zap.Int("feeds", len(p.feeds)))
}

// Stop cancels the polling loops and waits for them to drain
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("Feed polling stopped")
}

func (p *Poller) loop(ctx context.Context, polled PolledFeed) {
	defer p.wg.Done()

	ticker := time.NewTicker(polled.Interval)
	defer ticker.Stop()

	p.poll(ctx, polled.Feed)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, polled.Feed)
		}
	}
}

func (p *Poller) poll(ctx context.Context, feed Feed) {
	batch, err := p.client.FetchAlerts(ctx, feed)
	if err != nil {
		p.logger.Error("Feed poll failed",
			zap.String("feed", feed.Name),
			zap.Error(err))
		if p.metrics != nil {
			p.metrics.FeedPollErrors.WithLabelValues(feed.Name).Inc()
		}
		return
	}

	if p.cache != nil {
		p.cache.Update(feed.Name, batch)
	}
	if len(batch) == 0 {
		return
	}

	if p.metrics != nil {
		p.metrics.BatchSize.Observe(float64(len(batch)))
	}

	ids := p.processor.BatchProcessAlerts(ctx, batch)
	p.logger.Info("Feed batch processed",
		zap.String("feed", feed.Name),
		zap.Int("fetched", len(batch)),
		zap.Int("incidents", len(ids)))
}
