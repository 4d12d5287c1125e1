package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

type stubSender struct {
	kind string
	sent int
}

func (s *stubSender) Type() string { return s.kind }

func (s *stubSender) Send(context.Context, *models.Channel, string, string) error {
	s.sent++
	return nil
}

func (s *stubSender) Close() error { return nil }

func TestDispatcherRoutesByChannelType(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(RateLimitConfig{})
	smtp := &stubSender{kind: "smtp"}
	webhook := &stubSender{kind: "webhook"}
	d.Register(smtp)
	d.Register(webhook)

	err := d.Send(ctx, &models.Channel{ID: "ch1", Type: "webhook"}, "ops", "msg")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if webhook.sent != 1 || smtp.sent != 0 {
		t.Errorf("sends = smtp:%d webhook:%d, want webhook only", smtp.sent, webhook.sent)
	}

	if err := d.Send(ctx, &models.Channel{ID: "ch2", Type: "carrier-pigeon"}, "ops", "msg"); err == nil {
		t.Error("unregistered channel type must fail")
	}
}

func TestDispatcherRateLimit(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(RateLimitConfig{PerSecond: 0.001, Burst: 2, Enabled: true})
	d.Register(&stubSender{kind: "webhook"})
	channel := &models.Channel{ID: "ch1", Type: "webhook"}

	for i := 0; i < 2; i++ {
		if err := d.Send(ctx, channel, "ops", "msg"); err != nil {
			t.Fatalf("send %d within burst: %v", i, err)
		}
	}
	if err := d.Send(ctx, channel, "ops", "msg"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited past the burst", err)
	}
}
