package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bondwatch/internal/model"
)

const (
	headerSignature  = "X-Webhook-Signature"
	headerEvent      = "X-Webhook-Event"
	headerDeliveryID = "X-Webhook-Delivery"
)

// DeliveryOptions tune one logical delivery. Zero values fall back to the
// defaults below.
type DeliveryOptions struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	Timeout      time.Duration
}

func (o DeliveryOptions) withDefaults() DeliveryOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	return o
}

// Deliverer performs signed webhook POSTs with retry and backoff.
type Deliverer struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDeliverer builds a Deliverer. A nil http client uses a default one;
// per-attempt timeouts come from DeliveryOptions, not the client.
func NewDeliverer(httpClient *http.Client, logger *zap.Logger) *Deliverer {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deliverer{httpClient: httpClient, logger: logger}
}

// Deliver performs one logical delivery: serialize once, sign once, then
// POST with up to MaxRetries+1 attempts. A 2xx response succeeds; a 4xx
// fails immediately; 5xx, timeouts, and transport errors back off
// exponentially and retry. All outcomes are carried in the result; Deliver
// never panics and the only error paths are serialization and context
// cancellation, both reported inside the result too.
func (d *Deliverer) Deliver(ctx context.Context, cfg model.WebhookConfig, payload model.WebhookPayload, opts DeliveryOptions) model.WebhookDeliveryResult {
	opts = opts.withDefaults()
	result := model.WebhookDeliveryResult{WebhookID: cfg.ID}

	body, err := json.Marshal(payload)
	if err != nil {
		result.Error = fmt.Sprintf("marshal payload: %v", err)
		return result
	}
	signature := Sign(body, cfg.Secret)

	delay := opts.InitialDelay
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		status, err := d.attempt(ctx, cfg, payload.Event, body, signature, opts.Timeout)
		if err != nil {
			result.Error = err.Error()
		} else {
			result.Status = status
			if status >= 200 && status < 300 {
				result.Success = true
				result.Error = ""
				return result
			}
			if status >= 400 && status < 500 {
				result.Error = fmt.Sprintf("client error: status %d", status)
				return result
			}
			result.Error = fmt.Sprintf("server error: status %d", status)
		}

		if attempt == opts.MaxRetries {
			break
		}

		d.logger.Debug("delivery attempt failed, backing off",
			zap.String("webhook_id", cfg.ID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.String("error", result.Error),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Error = ctx.Err().Error()
			return result
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * opts.Multiplier)
	}

	return result
}

// attempt issues a single POST bounded by the per-attempt timeout.
func (d *Deliverer) attempt(ctx context.Context, cfg model.WebhookConfig, event model.EventType, body []byte, signature string, timeout time.Duration) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, signature)
	req.Header.Set(headerEvent, string(event))
	req.Header.Set(headerDeliveryID, uuid.NewString())

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, nil
}
