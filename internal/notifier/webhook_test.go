package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

func TestWebhookSenderSend(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(time.Second)
	channel := &models.Channel{ID: "ch1", Type: "webhook", Sender: "alertflow", Host: server.URL}

	if err := sender.Send(context.Background(), channel, "ops", "node is down"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Sender != "alertflow" || got.Receiver != "ops" || got.Message != "node is down" {
		t.Errorf("payload = %+v", got)
	}
}

func TestWebhookSenderNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sender := NewWebhookSender(time.Second)
	channel := &models.Channel{ID: "ch1", Type: "webhook", Host: server.URL}

	if err := sender.Send(context.Background(), channel, "ops", "msg"); err == nil {
		t.Fatal("non-2xx response must be an error")
	}
}
