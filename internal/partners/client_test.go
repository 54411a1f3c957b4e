package partners

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stagecrew/rentline-backend/pkg/config"
	pkgerrors "github.com/stagecrew/rentline-backend/pkg/errors"
)

func clientConfig(baseURL string) config.PartnerConfig {
	return config.PartnerConfig{
		BaseURL:         baseURL,
		APIKey:          "test-key",
		RequestTimeout:  2 * time.Second,
		BreakerMaxFails: 3,
		BreakerOpenFor:  time.Minute,
	}
}

func TestHTTPClientCommit(t *testing.T) {
	t.Parallel()
	var gotIdempotencyKey atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/commitments" {
			http.NotFound(w, r)
			return
		}
		gotIdempotencyKey.Store(r.Header.Get("Idempotency-Key"))
		var req CommitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(CommitResponse{PartnerRef: "PREF-1", Status: "booked"})
	}))
	defer server.Close()

	client := NewHTTPClient(clientConfig(server.URL), testLogger())
	req := CommitRequest{
		ProjectRef:  "res-123",
		SlotID:      uuid.New(),
		Qty:         3,
		WindowStart: time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
	}
	ack, err := client.Commit(context.Background(), req)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ack.PartnerRef != "PREF-1" {
		t.Fatalf("unexpected ack %+v", ack)
	}
	want := req.ProjectRef + ":" + req.SlotID.String()
	if got := gotIdempotencyKey.Load(); got != want {
		t.Fatalf("idempotency key = %v, want %s", got, want)
	}
}

func TestHTTPClientListCapacity(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/capacity" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("item_kind") != "lighting" {
			http.Error(w, "missing item_kind", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]SlotOffer{{SlotID: uuid.New(), PartnerID: "partner-a", ItemKind: "lighting", Qty: 5}})
	}))
	defer server.Close()

	client := NewHTTPClient(clientConfig(server.URL), testLogger())
	offers, err := client.ListCapacity(context.Background(), "lighting", time.Now(), time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list capacity: %v", err)
	}
	if len(offers) != 1 || offers[0].Qty != 5 {
		t.Fatalf("unexpected offers %+v", offers)
	}
}

func TestHTTPClientBreakerOpens(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(clientConfig(server.URL), testLogger())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.ListCapacity(ctx, "lighting", time.Now(), time.Now()); !pkgerrors.HasCode(err, pkgerrors.CodePartnerUnavailable) {
			t.Fatalf("expected PARTNER_UNAVAILABLE, got %v", err)
		}
	}
	before := calls.Load()
	// The breaker is open now, so no further request reaches the server.
	if _, err := client.ListCapacity(ctx, "lighting", time.Now(), time.Now()); !pkgerrors.HasCode(err, pkgerrors.CodePartnerUnavailable) {
		t.Fatalf("expected PARTNER_UNAVAILABLE while open, got %v", err)
	}
	if calls.Load() != before {
		t.Fatalf("open breaker must short-circuit, server saw %d extra calls", calls.Load()-before)
	}
}
