package model

// WebhookConfig is a registered delivery destination. Managed externally;
// read-only to the dispatch path.
type WebhookConfig struct {
	ID     string      `json:"id"`
	URL    string      `json:"url"`
	Events []EventType `json:"events"`
	Secret string      `json:"secret"`
	Active bool        `json:"active"`
}

// Subscribed reports whether the webhook is registered for the event type.
func (c WebhookConfig) Subscribed(event EventType) bool {
	for _, e := range c.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookPayload is the wire body of an outbound delivery. Built fresh per
// dispatch so the timestamp reflects dispatch time.
type WebhookPayload struct {
	Event     EventType     `json:"event"`
	Timestamp string        `json:"timestamp"`
	Data      IdentityState `json:"data"`
}

// WebhookDeliveryResult is the outcome of one logical delivery, including
// internal retries. One per (webhook, dispatch) pair.
type WebhookDeliveryResult struct {
	WebhookID string `json:"webhook_id"`
	Success   bool   `json:"success"`
	Status    int    `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts"`
}
