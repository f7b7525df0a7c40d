package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/posflow/posflow/internal/eventstore/domain"
)

// ProjectorConfig holds projector configuration.
type ProjectorConfig struct {
	// EventType is the stored event type the projector follows.
	EventType string
	// Interval is the polling period.
	Interval time.Duration
	// RatePerSecond throttles handler invocations; zero means unthrottled.
	RatePerSecond float64
	// Burst is the throttle burst size, minimum 1.
	Burst int
}

// ProjectorHandler consumes one re-delivered stored event.
type ProjectorHandler func(ctx context.Context, event domain.StoredEvent) error

// EventSource is the slice of the event store the projector needs.
type EventSource interface {
	GetEventsByType(ctx context.Context, eventType string, since *time.Time) ([]domain.StoredEvent, error)
}

// Projector is a background loop that replays stored events of one type to a
// handler, advancing a checkpoint so each event is delivered once per
// process. The checkpoint is the pair (occurred_on, delivered ids at that
// instant): timestamps tie at microsecond granularity under bursts, and a
// time-only bound would drop a later-stored event sharing the boundary
// instant. Useful for analytics projections and backfill without touching
// the bus's live traffic.
type Projector struct {
	config      ProjectorConfig
	store       EventSource
	handler     ProjectorHandler
	limiter     *rate.Limiter
	logger      *slog.Logger
	checkpoint  *time.Time
	deliveredAt map[uuid.UUID]struct{}
}

// NewProjector creates a new Projector.
func NewProjector(config ProjectorConfig, store EventSource, handler ProjectorHandler, logger *slog.Logger) *Projector {
	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}
	return &Projector{
		config:  config,
		store:   store,
		handler: handler,
		limiter: limiter,
		logger:  logger,
	}
}

// Start runs the projection loop until the context is cancelled.
func (p *Projector) Start(ctx context.Context) error {
	if p.logger != nil {
		p.logger.Info("starting audit projector",
			slog.String("event_type", p.config.EventType),
			slog.Duration("interval", p.config.Interval),
		)
	}

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if p.logger != nil {
				p.logger.Info("stopping audit projector")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := p.Project(ctx); err != nil {
				if p.logger != nil {
					p.logger.Error("failed to project events", slog.Any("error", err))
				}
			}
		}
	}
}

// Project delivers the events stored since the checkpoint. A handler failure
// stops the pass without advancing past the failed event, so the next pass
// retries from it.
func (p *Projector) Project(ctx context.Context) error {
	stored, err := p.store.GetEventsByType(ctx, p.config.EventType, p.checkpoint)
	if err != nil {
		return err
	}

	for _, event := range stored {
		// The since bound is inclusive; skip what the last pass delivered.
		// Events sharing the checkpoint instant are skipped by id only, so
		// a later-stored event with an equal occurred_on still goes out.
		if p.checkpoint != nil {
			if event.OccurredOn.Before(*p.checkpoint) {
				continue
			}
			if event.OccurredOn.Equal(*p.checkpoint) {
				if _, done := p.deliveredAt[event.ID]; done {
					continue
				}
			}
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := p.handler(ctx, event); err != nil {
			return err
		}

		if p.checkpoint != nil && event.OccurredOn.Equal(*p.checkpoint) {
			p.deliveredAt[event.ID] = struct{}{}
		} else {
			occurredOn := event.OccurredOn
			p.checkpoint = &occurredOn
			p.deliveredAt = map[uuid.UUID]struct{}{event.ID: {}}
		}
	}
	return nil
}
