// Package notifier provides channel sender adapters for alert dispatch.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// ErrRateLimited is returned when a send is dropped by the dispatcher's
// rate limiter.
var ErrRateLimited = errors.New("notification rate limited")

// Sender delivers one rendered message to one receiver over a transport.
type Sender interface {
	// Type returns the channel type this sender handles, e.g. "smtp".
	Type() string
	Send(ctx context.Context, channel *models.Channel, receiver, message string) error
	Close() error
}

// Dispatcher routes sends to the Sender registered for the channel type,
// under a global rate limit.
type Dispatcher struct {
	mu      sync.RWMutex
	senders map[string]Sender
	limiter *rate.Limiter
}

// RateLimitConfig bounds outbound notifications.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	Enabled   bool
}

// DefaultRateLimitConfig allows a sustained 10 sends per minute.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PerSecond: 10.0 / 60.0,
		Burst:     10,
		Enabled:   true,
	}
}

// NewDispatcher creates a dispatcher with the given rate limit.
func NewDispatcher(config RateLimitConfig) *Dispatcher {
	d := &Dispatcher{senders: make(map[string]Sender)}
	if config.Enabled {
		if config.PerSecond <= 0 {
			config.PerSecond = DefaultRateLimitConfig().PerSecond
		}
		if config.Burst <= 0 {
			config.Burst = DefaultRateLimitConfig().Burst
		}
		d.limiter = rate.NewLimiter(rate.Limit(config.PerSecond), config.Burst)
	}
	return d
}

// Register adds a sender for its channel type.
func (d *Dispatcher) Register(s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[s.Type()] = s
}

// Send delivers the message through the sender matching the channel type.
func (d *Dispatcher) Send(ctx context.Context, channel *models.Channel, receiver, message string) error {
	if d.limiter != nil && !d.limiter.Allow() {
		return ErrRateLimited
	}

	d.mu.RLock()
	s, ok := d.senders[channel.Type]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no sender registered for channel type %q", channel.Type)
	}
	return s.Send(ctx, channel, receiver, message)
}

// Close closes all registered senders.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, s := range d.senders {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Type(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close senders: %v", errs)
	}
	return nil
}
