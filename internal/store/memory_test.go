package store

import (
	"context"
	"testing"
	"time"

	"bondwatch/internal/model"
)

func TestMemoryBondStoreApplyAndGet(t *testing.T) {
	ctx := context.Background()
	bonds := NewMemoryBondStore()

	if _, found, err := bonds.Get(ctx, "bond-1"); err != nil || found {
		t.Fatalf("empty store: found=%v err=%v", found, err)
	}

	err := bonds.Apply(ctx, model.BondStateUpdate{
		BondID:    "bond-1",
		Account:   "acct1",
		NewAmount: "250",
		Active:    true,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	rec, found, err := bonds.Get(ctx, "bond-1")
	if err != nil || !found {
		t.Fatalf("get after apply: found=%v err=%v", found, err)
	}
	if rec.Amount != "250" || !rec.Active || rec.Account != "acct1" {
		t.Fatalf("record = %+v", rec)
	}

	if err := bonds.Apply(ctx, model.BondStateUpdate{}); err == nil {
		t.Fatalf("expected error for missing bond id")
	}
}

func TestMemoryWebhookStoreAssignsIDAndKeepsOrder(t *testing.T) {
	ctx := context.Background()
	webhooks := NewMemoryWebhookStore()

	first, err := webhooks.Set(ctx, model.WebhookConfig{URL: "https://a.example", Events: []model.EventType{model.EventBondCreated}, Active: true})
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected an assigned id")
	}
	second, err := webhooks.Set(ctx, model.WebhookConfig{URL: "https://b.example", Events: []model.EventType{model.EventBondCreated}, Active: true})
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	configs, err := webhooks.GetByEvent(ctx, model.EventBondCreated)
	if err != nil {
		t.Fatalf("get by event: %v", err)
	}
	if len(configs) != 2 || configs[0].ID != first.ID || configs[1].ID != second.ID {
		t.Fatalf("configs = %+v, want insertion order", configs)
	}

	// Updating in place must not duplicate or reorder.
	first.Active = false
	if _, err := webhooks.Set(ctx, first); err != nil {
		t.Fatalf("update: %v", err)
	}
	configs, _ = webhooks.GetByEvent(ctx, model.EventBondCreated)
	if len(configs) != 2 || configs[0].ID != first.ID || configs[0].Active {
		t.Fatalf("configs after update = %+v", configs)
	}

	if _, err := webhooks.Set(ctx, model.WebhookConfig{}); err == nil {
		t.Fatalf("expected error for missing url")
	}
}

func TestMemoryWebhookStoreFiltersByEvent(t *testing.T) {
	ctx := context.Background()
	webhooks := NewMemoryWebhookStore()
	if _, err := webhooks.Set(ctx, model.WebhookConfig{URL: "https://a.example", Events: []model.EventType{model.EventBondSlashed}}); err != nil {
		t.Fatalf("set: %v", err)
	}

	configs, err := webhooks.GetByEvent(ctx, model.EventBondWithdrawn)
	if err != nil {
		t.Fatalf("get by event: %v", err)
	}
	if len(configs) != 0 {
		t.Fatalf("configs = %+v, want none", configs)
	}
}

func TestMemoryScoreHistoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	history := NewMemoryScoreHistoryStore()

	for i, reason := range []model.SnapshotReason{model.SnapshotWithdrawalPartial, model.SnapshotWithdrawalFull} {
		err := history.Append(ctx, model.ScoreHistorySnapshot{
			Account: "acct1",
			Score:   float64(i),
			Amount:  "10",
			Reason:  reason,
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	snaps, err := history.List(ctx, "acct1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Reason != model.SnapshotWithdrawalPartial || snaps[1].Reason != model.SnapshotWithdrawalFull {
		t.Fatalf("snaps = %+v, want append order", snaps)
	}

	if err := history.Append(ctx, model.ScoreHistorySnapshot{}); err == nil {
		t.Fatalf("expected error for missing account")
	}
	if got := history.Accounts(); len(got) != 1 || got[0] != "acct1" {
		t.Fatalf("accounts = %v", got)
	}
}
