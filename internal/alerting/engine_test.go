package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
	"github.com/good-yellow-bee/alertflow/internal/storage"
)

// testNow is the pinned clock used across the engine tests. A Monday.
var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

type sentMessage struct {
	channelID string
	receiver  string
	message   string
}

// fakeSender records sends and optionally fails them.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(_ context.Context, channel *models.Channel, receiver, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{channelID: channel.ID, receiver: receiver, message: message})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore, *fakeSender) {
	t.Helper()
	store := storage.NewMemoryStore()
	sender := &fakeSender{}
	engine := NewEngine(store, sender, nil, nil)
	engine.SetClock(func() time.Time { return testNow })
	return engine, store, sender
}

func newReport(resource, event string, severity models.Severity) *models.Alert {
	return &models.Alert{
		Environment: "production",
		Resource:    resource,
		Event:       event,
		Severity:    severity,
		Service:     []string{"web"},
		Value:       "1",
		Text:        "node is down",
	}
}

func seedChannel(t *testing.T, store storage.Store) {
	t.Helper()
	err := store.Channels().Create(context.Background(), &models.Channel{
		ID:     "ch1",
		Type:   "webhook",
		Sender: "alertflow",
		Host:   "http://hooks.example.com/alerts",
	})
	if err != nil {
		t.Fatalf("seed channel: %v", err)
	}
}

func seedRule(t *testing.T, engine *Engine, store storage.Store, rule *models.NotificationRule) {
	t.Helper()
	if err := store.NotificationRules().Create(context.Background(), rule); err != nil {
		t.Fatalf("seed rule %s: %v", rule.ID, err)
	}
	engine.InvalidateRules()
}

func basicRule(id string) *models.NotificationRule {
	return &models.NotificationRule{
		RuleScope: models.RuleScope{Environment: "production"},
		ID:        id,
		Active:    true,
		ChannelID: "ch1",
		Receivers: []string{"ops@example.com"},
		Text:      "check the node",
	}
}
