package model

import (
	"encoding/json"
	"testing"
)

func TestWebhookPayloadWireShape(t *testing.T) {
	payload := WebhookPayload{
		Event:     EventBondWithdrawn,
		Timestamp: "2025-06-01T12:00:00Z",
		Data: IdentityState{
			Address:      "acct1",
			BondedAmount: "0",
			Active:       false,
		},
	}

	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded["event"] != "bond.withdrawn" {
		t.Fatalf("event = %v", decoded["event"])
	}
	if decoded["timestamp"] != "2025-06-01T12:00:00Z" {
		t.Fatalf("timestamp = %v", decoded["timestamp"])
	}

	data, ok := decoded["data"].(map[string]any)
	if !ok {
		t.Fatalf("data field missing: %v", decoded)
	}
	for _, key := range []string{"address", "bondedAmount", "bondStart", "bondDuration", "active"} {
		if _, present := data[key]; !present {
			t.Fatalf("data missing key %q: %v", key, data)
		}
	}
}

func TestWebhookConfigSubscribed(t *testing.T) {
	cfg := WebhookConfig{Events: []EventType{EventBondCreated, EventBondSlashed}}
	if !cfg.Subscribed(EventBondSlashed) {
		t.Fatalf("expected subscription to bond.slashed")
	}
	if cfg.Subscribed(EventBondWithdrawn) {
		t.Fatalf("unexpected subscription to bond.withdrawn")
	}
}

func TestEventTypeValid(t *testing.T) {
	for _, e := range EventTypes() {
		if !e.Valid() {
			t.Fatalf("%s should be valid", e)
		}
	}
	if EventType("bond.minted").Valid() {
		t.Fatalf("unknown event type should be invalid")
	}
}
