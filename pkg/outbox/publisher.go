package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wms-platform/roadmap-service/pkg/kafka"
	"github.com/wms-platform/roadmap-service/pkg/logging"
	"github.com/wms-platform/roadmap-service/pkg/metrics"
)

// PublisherConfig tunes the poll loop
type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Publisher polls a Store and relays pending entries to Kafka. Entries are
// published at least once; consumers dedupe on the CloudEvent id.
type Publisher struct {
	store    Store
	producer kafka.EventPublisher
	logger   *logging.Logger
	metrics  *metrics.Metrics
	cfg      PublisherConfig

	published atomic.Int64
	failed    atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPublisher creates a Publisher. Zero config fields fall back to a 1s
// interval and batches of 100. m may be nil.
func NewPublisher(store Store, producer kafka.EventPublisher, logger *logging.Logger, m *metrics.Metrics, cfg PublisherConfig) *Publisher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Publisher{
		store:    store,
		producer: producer,
		logger:   logger.WithComponent("outbox-publisher"),
		metrics:  m,
		cfg:      cfg,
	}
}

// Start runs the poll loop until Stop is called or ctx ends
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("outbox publisher already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)

	p.logger.Info("Outbox publisher started", "interval", p.cfg.PollInterval, "batchSize", p.cfg.BatchSize)
	return nil
}

// Stop ends the loop and waits for the batch in flight
func (p *Publisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return errors.New("outbox publisher not running")
	}

	p.cancel()
	<-p.done
	p.cancel = nil

	published, failed := p.Stats()
	p.logger.Info("Outbox publisher stopped", "published", published, "failed", failed)
	return nil
}

func (p *Publisher) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Drain(ctx)
		}
	}
}

// Drain publishes one batch and returns how many entries made it to Kafka
func (p *Publisher) Drain(ctx context.Context) int {
	entries, err := p.store.Pending(ctx, p.cfg.BatchSize)
	if err != nil {
		p.logger.WithError(err).Error("Failed to load pending outbox entries")
		return 0
	}
	p.metrics.SetOutboxPending(len(entries))

	sent := 0
	for _, entry := range entries {
		start := time.Now()
		err := p.publish(ctx, entry)
		p.metrics.RecordOutboxPublish(entry.EventType, err == nil, time.Since(start))

		if err != nil {
			p.failed.Add(1)
			p.metrics.RecordOutboxRetry(entry.EventType)
			p.logger.WithError(err).Error("Failed to publish outbox entry",
				"entryId", entry.ID, "eventType", entry.EventType, "aggregateId", entry.AggregateID, "attempt", entry.Attempts+1)
			if err := p.store.RecordFailure(ctx, entry.ID, err.Error()); err != nil {
				p.logger.WithError(err).Error("Failed to record outbox failure", "entryId", entry.ID)
			}
			continue
		}

		p.published.Add(1)
		sent++
		if err := p.store.MarkPublished(ctx, entry.ID); err != nil {
			p.logger.WithError(err).Error("Failed to mark outbox entry published", "entryId", entry.ID)
		}
	}
	return sent
}

func (p *Publisher) publish(ctx context.Context, entry *Entry) error {
	event, err := entry.CloudEvent()
	if err != nil {
		return err
	}
	if err := p.producer.PublishEvent(ctx, entry.Topic, event); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", entry.Topic, err)
	}
	return nil
}

// Stats returns how many entries were published and how many attempts
// failed since the publisher was created
func (p *Publisher) Stats() (published, failed int64) {
	return p.published.Load(), p.failed.Load()
}
