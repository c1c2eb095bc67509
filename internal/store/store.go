package store

import (
	"context"

	"bondwatch/internal/model"
)

// BondStore persists the last known state of each bond.
type BondStore interface {
	// Get returns the bond record and whether one exists.
	Get(ctx context.Context, bondID string) (model.BondRecord, bool, error)
	// Apply replaces the bond state with the outcome of one update.
	Apply(ctx context.Context, update model.BondStateUpdate) error
}

// WebhookStore persists webhook configurations. The management surface
// writes them; the dispatch path only reads.
type WebhookStore interface {
	// GetByEvent returns every webhook subscribed to the event type,
	// active and inactive, in a stable order.
	GetByEvent(ctx context.Context, event model.EventType) ([]model.WebhookConfig, error)
	Get(ctx context.Context, id string) (model.WebhookConfig, bool, error)
	// Set creates or replaces a configuration, assigning an id when the
	// given one is empty, and returns the stored value.
	Set(ctx context.Context, cfg model.WebhookConfig) (model.WebhookConfig, error)
}

// ScoreHistoryStore appends score snapshots. Append-only; snapshots are
// never mutated.
type ScoreHistoryStore interface {
	Append(ctx context.Context, snap model.ScoreHistorySnapshot) error
	List(ctx context.Context, account string) ([]model.ScoreHistorySnapshot, error)
}

// CursorStore persists the poller's resumption token across restarts.
type CursorStore interface {
	Load(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, cursor string) error
}
