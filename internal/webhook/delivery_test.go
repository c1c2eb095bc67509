package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bondwatch/internal/model"
)

func fastOptions() DeliveryOptions {
	return DeliveryOptions{
		MaxRetries:   3,
		InitialDelay: 5 * time.Millisecond,
		Multiplier:   2,
		Timeout:      time.Second,
	}
}

func testPayload() model.WebhookPayload {
	return model.WebhookPayload{
		Event:     model.EventBondSlashed,
		Timestamp: "2025-06-01T12:00:00Z",
		Data:      model.IdentityState{Address: "acct1", BondedAmount: "500", Active: true},
	}
}

func TestDeliverSuccessFirstAttempt(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	deliverer := NewDeliverer(nil, nil)
	cfg := model.WebhookConfig{ID: "wh1", URL: server.URL, Secret: "s3cret"}

	result := deliverer.Deliver(context.Background(), cfg, testPayload(), fastOptions())
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", result.Attempts)
	}
	if result.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", result.Status)
	}
	if calls.Load() != 1 {
		t.Fatalf("server saw %d calls, want 1", calls.Load())
	}
}

func TestDeliverRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	deliverer := NewDeliverer(nil, nil)
	cfg := model.WebhookConfig{ID: "wh1", URL: server.URL, Secret: "s3cret"}

	start := time.Now()
	result := deliverer.Deliver(context.Background(), cfg, testPayload(), fastOptions())
	elapsed := time.Since(start)

	if !result.Success {
		t.Fatalf("expected eventual success, got error %q", result.Error)
	}
	if result.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", result.Attempts)
	}
	// Two backoff sleeps: 5ms then 10ms.
	if elapsed < 15*time.Millisecond {
		t.Fatalf("expected backoff sleeps, finished in %s", elapsed)
	}
}

func TestDeliverClientErrorNoRetry(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	deliverer := NewDeliverer(nil, nil)
	cfg := model.WebhookConfig{ID: "wh1", URL: server.URL, Secret: "s3cret"}

	result := deliverer.Deliver(context.Background(), cfg, testPayload(), fastOptions())
	if result.Success {
		t.Fatalf("expected failure on client error")
	}
	if result.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", result.Attempts)
	}
	if result.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", result.Status)
	}
	if calls.Load() != 1 {
		t.Fatalf("server saw %d calls, want 1", calls.Load())
	}
}

func TestDeliverExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	deliverer := NewDeliverer(nil, nil)
	cfg := model.WebhookConfig{ID: "wh1", URL: server.URL, Secret: "s3cret"}

	result := deliverer.Deliver(context.Background(), cfg, testPayload(), fastOptions())
	if result.Success {
		t.Fatalf("expected failure after exhausting retries")
	}
	if result.Attempts != 4 {
		t.Fatalf("attempts = %d, want 4 (1 + 3 retries)", result.Attempts)
	}
	if result.Error == "" {
		t.Fatalf("expected last error to be recorded")
	}
	if calls.Load() != 4 {
		t.Fatalf("server saw %d calls, want 4", calls.Load())
	}
}

func TestDeliverTimeoutCountsAsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	deliverer := NewDeliverer(nil, nil)
	cfg := model.WebhookConfig{ID: "wh1", URL: server.URL, Secret: "s3cret"}
	opts := DeliveryOptions{MaxRetries: 1, InitialDelay: time.Millisecond, Multiplier: 2, Timeout: 20 * time.Millisecond}

	result := deliverer.Deliver(context.Background(), cfg, testPayload(), opts)
	if result.Success {
		t.Fatalf("expected timeout failure")
	}
	if result.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", result.Attempts)
	}
}

func TestDeliverHeadersAndSignature(t *testing.T) {
	type seen struct {
		signature string
		event     string
		delivery  string
		body      []byte
	}
	got := make(chan seen, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- seen{
			signature: r.Header.Get("X-Webhook-Signature"),
			event:     r.Header.Get("X-Webhook-Event"),
			delivery:  r.Header.Get("X-Webhook-Delivery"),
			body:      body,
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	deliverer := NewDeliverer(nil, nil)
	cfg := model.WebhookConfig{ID: "wh1", URL: server.URL, Secret: "s3cret"}
	payload := testPayload()

	result := deliverer.Deliver(context.Background(), cfg, payload, fastOptions())
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	observed := <-got
	if observed.event != string(model.EventBondSlashed) {
		t.Fatalf("event header = %s", observed.event)
	}
	if observed.delivery == "" {
		t.Fatalf("missing delivery id header")
	}
	if want := Sign(observed.body, cfg.Secret); observed.signature != want {
		t.Fatalf("signature does not verify against the body: %s != %s", observed.signature, want)
	}

	var decoded model.WebhookPayload
	if err := json.Unmarshal(observed.body, &decoded); err != nil {
		t.Fatalf("body is not valid payload json: %v", err)
	}
	if decoded.Data.Address != "acct1" {
		t.Fatalf("payload data address = %s", decoded.Data.Address)
	}
}
