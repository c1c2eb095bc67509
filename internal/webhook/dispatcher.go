package webhook

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bondwatch/internal/model"
)

// Subscribers resolves webhook configurations registered for an event type,
// active or not. Backed by the webhook store.
type Subscribers interface {
	GetByEvent(ctx context.Context, event model.EventType) ([]model.WebhookConfig, error)
}

// Dispatcher fans a lifecycle event out to every active subscriber.
type Dispatcher struct {
	subscribers Subscribers
	deliverer   *Deliverer
	limiter     *RateLimiter
	opts        DeliveryOptions
	logger      *zap.Logger
	now         func() time.Time
}

// NewDispatcher builds a Dispatcher with its collaborators.
func NewDispatcher(subscribers Subscribers, deliverer *Deliverer, limiter *RateLimiter, opts DeliveryOptions, logger *zap.Logger) *Dispatcher {
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		subscribers: subscribers,
		deliverer:   deliverer,
		limiter:     limiter,
		opts:        opts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Emit delivers an event to every active subscriber concurrently and
// returns one result per subscriber, in subscriber-list order. With no
// active subscribers it returns an empty slice and touches no network.
// Partial failure is carried in the results, never as an error.
func (d *Dispatcher) Emit(ctx context.Context, event model.EventType, data model.IdentityState) ([]model.WebhookDeliveryResult, error) {
	if !event.Valid() {
		return nil, fmt.Errorf("unknown event type: %s", event)
	}

	configs, err := d.subscribers.GetByEvent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("resolve subscribers: %w", err)
	}

	active := make([]model.WebhookConfig, 0, len(configs))
	for _, cfg := range configs {
		if cfg.Active {
			active = append(active, cfg)
		}
	}
	if len(active) == 0 {
		return []model.WebhookDeliveryResult{}, nil
	}

	// One payload shared by all recipients; the timestamp is dispatch time.
	payload := model.WebhookPayload{
		Event:     event,
		Timestamp: d.now().Format(time.RFC3339),
		Data:      data,
	}

	results := make([]model.WebhookDeliveryResult, len(active))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, cfg := range active {
		i, cfg := i, cfg
		group.Go(func() error {
			if err := d.limiter.Wait(groupCtx, cfg.ID); err != nil {
				results[i] = model.WebhookDeliveryResult{WebhookID: cfg.ID, Error: err.Error()}
				return nil
			}
			results[i] = d.deliverer.Deliver(groupCtx, cfg, payload, d.opts)
			return nil
		})
	}
	group.Wait()

	for _, res := range results {
		if !res.Success {
			d.logger.Warn("webhook delivery failed",
				zap.String("webhook_id", res.WebhookID),
				zap.String("event", string(event)),
				zap.Int("status", res.Status),
				zap.Int("attempts", res.Attempts),
				zap.String("error", res.Error),
			)
		}
	}

	return results, nil
}
