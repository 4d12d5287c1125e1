// Package alerting implements the alert lifecycle state machine and the
// notification-rule matching and dispatch engine.
package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/claim"
	"github.com/good-yellow-bee/alertflow/internal/models"
	"github.com/good-yellow-bee/alertflow/internal/storage"
)

// ChannelSender delivers a rendered message through a notification channel.
// Implementations live outside this package; the engine only renders the
// dispatch intent.
type ChannelSender interface {
	Send(ctx context.Context, channel *models.Channel, receiver, message string) error
}

// TransitionKind classifies what an ingest or status change did to an alert.
type TransitionKind string

const (
	TransitionOpened    TransitionKind = "opened"
	TransitionDuplicate TransitionKind = "duplicate"
	TransitionSeverity  TransitionKind = "severity"
	TransitionStatus    TransitionKind = "status"
)

// Transition describes the change an alert just underwent. ID is unique
// per transition and keys the dispatch dedup guard.
type Transition struct {
	ID           string
	Kind         TransitionKind
	FromSeverity models.Severity
	ToSeverity   models.Severity
	Status       models.Status
}

// Options configures the engine.
type Options struct {
	// HistoryLimit bounds per-alert history length. Zero keeps everything.
	HistoryLimit int
	// IngestRetries bounds optimistic-concurrency retries on key races.
	IngestRetries int
	// SendTimeout wraps each external sender call.
	SendTimeout time.Duration
	// SendRetries bounds sender retries per dispatch.
	SendRetries int
	// ClaimTTL is how long a dispatch claim stays held.
	ClaimTTL time.Duration
	// FlappingWindow and FlappingCount tune flapping detection.
	FlappingWindow time.Duration
	FlappingCount  int
	// SeverityMap ranks severities for trend computation. Nil uses
	// models.DefaultSeverityMap.
	SeverityMap map[models.Severity]int
}

// DefaultOptions returns the default engine options.
func DefaultOptions() *Options {
	return &Options{
		HistoryLimit:   100,
		IngestRetries:  3,
		SendTimeout:    10 * time.Second,
		SendRetries:    2,
		ClaimTTL:       time.Hour,
		FlappingWindow: 2 * time.Minute,
		FlappingCount:  2,
	}
}

// Engine wires the storage, sender, claim-guard and clock collaborators
// into the alert lifecycle operations.
type Engine struct {
	store  storage.Store
	sender ChannelSender
	guard  claim.Guard
	opts   *Options

	// now is replaceable for tests.
	now func() time.Time

	rules ruleCache

	stats EngineStats
}

// EngineStats tracks engine counters for the stats endpoint. Prometheus
// metrics are recorded separately in internal/metrics.
type EngineStats struct {
	mu         sync.Mutex
	Ingested   int64
	Duplicates int64
	Dispatched int64
	Suppressed int64
	Failed     int64
}

// NewEngine creates an engine. A nil guard falls back to the in-process
// claim guard; nil opts fall back to DefaultOptions.
func NewEngine(store storage.Store, sender ChannelSender, guard claim.Guard, opts *Options) *Engine {
	if opts == nil {
		opts = DefaultOptions()
	}
	if guard == nil {
		guard = claim.NewMemoryGuard()
	}
	return &Engine{
		store:  store,
		sender: sender,
		guard:  guard,
		opts:   opts,
		now:    time.Now,
	}
}

// SetClock replaces the engine clock. Tests use this to pin time.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) severityRank(s models.Severity) int {
	m := e.opts.SeverityMap
	if m == nil {
		m = models.DefaultSeverityMap
	}
	return m[s]
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() (ingested, duplicates, dispatched, suppressed, failed int64) {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	return e.stats.Ingested, e.stats.Duplicates, e.stats.Dispatched, e.stats.Suppressed, e.stats.Failed
}

func (e *Engine) count(field *int64) {
	e.stats.mu.Lock()
	*field++
	e.stats.mu.Unlock()
}

// ruleCache holds the active notification rules per environment, refreshed
// from storage when invalidated. Rule CRUD and the file watcher bump the
// version; readers compare versions instead of re-querying per alert.
type ruleCache struct {
	mu      sync.RWMutex
	version int64
	byEnv   map[string]cachedRules
}

type cachedRules struct {
	version int64
	rules   []*models.NotificationRule
}

// Invalidate drops all cached rule sets.
func (c *ruleCache) Invalidate() {
	c.mu.Lock()
	c.version++
	c.mu.Unlock()
}

func (c *ruleCache) get(env string) ([]*models.NotificationRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byEnv[env]
	if !ok || entry.version != c.version {
		return nil, false
	}
	return entry.rules, true
}

func (c *ruleCache) put(env string, rules []*models.NotificationRule) {
	c.mu.Lock()
	if c.byEnv == nil {
		c.byEnv = make(map[string]cachedRules)
	}
	c.byEnv[env] = cachedRules{version: c.version, rules: rules}
	c.mu.Unlock()
}

// InvalidateRules drops the engine's cached rule sets. Callers mutating
// rules through storage must invalidate explicitly.
func (e *Engine) InvalidateRules() {
	e.rules.Invalidate()
}

// activeRules returns the notification rules for the environment, cached
// until invalidated.
func (e *Engine) activeRules(ctx context.Context, env string) ([]*models.NotificationRule, error) {
	if rules, ok := e.rules.get(env); ok {
		return rules, nil
	}
	rules, err := e.store.NotificationRules().ListByEnvironment(ctx, env)
	if err != nil {
		return nil, err
	}
	e.rules.put(env, rules)
	return rules, nil
}
