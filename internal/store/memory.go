package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"bondwatch/internal/model"
)

// MemoryBondStore keeps bond records in a mutex-guarded map. Used in tests
// and for ledger-less local runs.
type MemoryBondStore struct {
	mu    sync.RWMutex
	bonds map[string]model.BondRecord
}

func NewMemoryBondStore() *MemoryBondStore {
	return &MemoryBondStore{bonds: make(map[string]model.BondRecord)}
}

func (s *MemoryBondStore) Get(_ context.Context, bondID string) (model.BondRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.bonds[bondID]
	return rec, ok, nil
}

func (s *MemoryBondStore) Apply(_ context.Context, update model.BondStateUpdate) error {
	if update.BondID == "" {
		return fmt.Errorf("bond id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bonds[update.BondID] = model.BondRecord{
		ID:      update.BondID,
		Account: update.Account,
		Amount:  update.NewAmount,
		Active:  update.Active,
	}
	return nil
}

// MemoryWebhookStore keeps webhook configurations in memory, ordered by id
// for stable GetByEvent results.
type MemoryWebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]model.WebhookConfig
	order    []string
}

func NewMemoryWebhookStore() *MemoryWebhookStore {
	return &MemoryWebhookStore{webhooks: make(map[string]model.WebhookConfig)}
}

func (s *MemoryWebhookStore) GetByEvent(_ context.Context, event model.EventType) ([]model.WebhookConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.WebhookConfig
	for _, id := range s.order {
		cfg := s.webhooks[id]
		if cfg.Subscribed(event) {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (s *MemoryWebhookStore) Get(_ context.Context, id string) (model.WebhookConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.webhooks[id]
	return cfg, ok, nil
}

func (s *MemoryWebhookStore) Set(_ context.Context, cfg model.WebhookConfig) (model.WebhookConfig, error) {
	if cfg.URL == "" {
		return model.WebhookConfig{}, fmt.Errorf("webhook url is required")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.webhooks[cfg.ID]; !exists {
		s.order = append(s.order, cfg.ID)
	}
	s.webhooks[cfg.ID] = cfg
	return cfg, nil
}

// MemoryScoreHistoryStore keeps snapshots per account in append order.
type MemoryScoreHistoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]model.ScoreHistorySnapshot
}

func NewMemoryScoreHistoryStore() *MemoryScoreHistoryStore {
	return &MemoryScoreHistoryStore{snapshots: make(map[string][]model.ScoreHistorySnapshot)}
}

func (s *MemoryScoreHistoryStore) Append(_ context.Context, snap model.ScoreHistorySnapshot) error {
	if snap.Account == "" {
		return fmt.Errorf("account is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Account] = append(s.snapshots[snap.Account], snap)
	return nil
}

func (s *MemoryScoreHistoryStore) List(_ context.Context, account string) ([]model.ScoreHistorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ScoreHistorySnapshot, len(s.snapshots[account]))
	copy(out, s.snapshots[account])
	return out, nil
}

// Accounts returns every account with at least one snapshot, sorted.
func (s *MemoryScoreHistoryStore) Accounts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]string, 0, len(s.snapshots))
	for account := range s.snapshots {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts
}

// MemoryCursorStore holds the cursor in memory.
type MemoryCursorStore struct {
	mu     sync.RWMutex
	cursor string
	set    bool
}

func NewMemoryCursorStore() *MemoryCursorStore {
	return &MemoryCursorStore{}
}

func (s *MemoryCursorStore) Load(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, s.set, nil
}

func (s *MemoryCursorStore) Save(_ context.Context, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
	s.set = true
	return nil
}
