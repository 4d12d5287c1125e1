package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// MemoryStore is an in-process Store used in tests and single-node
// deployments. Conditional alert updates are serialized under one lock,
// giving the same atomic per-key read-modify-write guarantee a row store
// provides.
type MemoryStore struct {
	mu sync.RWMutex

	alerts    map[string]*models.Alert // by id
	rules     map[string]*models.NotificationRule
	escRules  map[string]*models.EscalationRule
	blackouts map[string]*models.Blackout
	oncalls   map[string]*models.OnCall
	groups    map[string][]string
	channels  map[string]*models.Channel
	delays    map[string]*models.DelayedNotification
	history   []*models.NotificationHistory
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:    make(map[string]*models.Alert),
		rules:     make(map[string]*models.NotificationRule),
		escRules:  make(map[string]*models.EscalationRule),
		blackouts: make(map[string]*models.Blackout),
		oncalls:   make(map[string]*models.OnCall),
		groups:    make(map[string][]string),
		channels:  make(map[string]*models.Channel),
		delays:    make(map[string]*models.DelayedNotification),
	}
}

func (s *MemoryStore) Open() error    { return nil }
func (s *MemoryStore) Close() error   { return nil }
func (s *MemoryStore) Migrate() error { return nil }

func (s *MemoryStore) Alerts() AlertRepository { return (*memAlerts)(s) }
func (s *MemoryStore) NotificationRules() NotificationRuleRepository {
	return (*memRules)(s)
}
func (s *MemoryStore) EscalationRules() EscalationRuleRepository { return (*memEscRules)(s) }
func (s *MemoryStore) Blackouts() BlackoutRepository             { return (*memBlackouts)(s) }
func (s *MemoryStore) OnCalls() OnCallRepository                 { return (*memOnCalls)(s) }
func (s *MemoryStore) Groups() GroupRepository                   { return (*memGroups)(s) }
func (s *MemoryStore) Channels() ChannelRepository               { return (*memChannels)(s) }
func (s *MemoryStore) Delays() DelayRepository                   { return (*memDelays)(s) }
func (s *MemoryStore) NotificationHistory() NotificationHistoryRepository {
	return (*memHistory)(s)
}

func copyAlert(a *models.Alert) *models.Alert {
	c := *a
	c.Correlate = append([]string(nil), a.Correlate...)
	c.Service = append([]string(nil), a.Service...)
	c.Tags = append([]string(nil), a.Tags...)
	c.History = append([]models.HistoryEntry(nil), a.History...)
	if a.Attributes != nil {
		c.Attributes = make(map[string]any, len(a.Attributes))
		for k, v := range a.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

type memAlerts MemoryStore

func (s *memAlerts) GetByID(_ context.Context, id string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAlert(a), nil
}

func (s *memAlerts) GetByKey(_ context.Context, key models.AlertKey) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alerts {
		if a.Key() == key {
			return copyAlert(a), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memAlerts) FindCorrelated(_ context.Context, env, resource, customer, event string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.alerts {
		if a.Environment != env || a.Resource != resource || a.Customer != customer {
			continue
		}
		for _, e := range a.Correlate {
			if e == event {
				return copyAlert(a), nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *memAlerts) Create(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.Key() == alert.Key() {
			return ErrAlreadyExists
		}
	}
	alert.Revision = 1
	s.alerts[alert.ID] = copyAlert(alert)
	return nil
}

func (s *memAlerts) Update(_ context.Context, alert *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.alerts[alert.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Revision != alert.Revision {
		return ErrRevisionConflict
	}
	alert.Revision++
	s.alerts[alert.ID] = copyAlert(alert)
	return nil
}

func (s *memAlerts) ListOpen(_ context.Context) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Alert
	for _, a := range s.alerts {
		if a.Status == models.StatusOpen {
			out = append(out, copyAlert(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memAlerts) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[id]; !ok {
		return ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}

type memRules MemoryStore

func (s *memRules) Create(_ context.Context, rule *models.NotificationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return nil
}

func (s *memRules) GetByID(_ context.Context, id string) (*models.NotificationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *memRules) Update(_ context.Context, rule *models.NotificationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[rule.ID]; !ok {
		return ErrNotFound
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *memRules) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

func (s *memRules) ListByEnvironment(_ context.Context, env string) ([]*models.NotificationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.NotificationRule
	for _, r := range s.rules {
		if env == "" || r.Environment == env {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memRules) Reactivate(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rules {
		if !r.Active && r.Reactivate != nil && !now.Before(*r.Reactivate) {
			r.Active = true
			r.Reactivate = nil
			n++
		}
	}
	return n, nil
}

type memEscRules MemoryStore

func (s *memEscRules) Create(_ context.Context, rule *models.EscalationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escRules[rule.ID] = rule
	return nil
}

func (s *memEscRules) GetByID(_ context.Context, id string) (*models.EscalationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.escRules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *memEscRules) Update(_ context.Context, rule *models.EscalationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.escRules[rule.ID]; !ok {
		return ErrNotFound
	}
	s.escRules[rule.ID] = rule
	return nil
}

func (s *memEscRules) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.escRules, id)
	return nil
}

func (s *memEscRules) ListActive(_ context.Context) ([]*models.EscalationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EscalationRule
	for _, r := range s.escRules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memBlackouts MemoryStore

func (s *memBlackouts) Create(_ context.Context, b *models.Blackout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blackouts[b.ID] = b
	return nil
}

func (s *memBlackouts) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blackouts, id)
	return nil
}

func (s *memBlackouts) ListByEnvironment(_ context.Context, env string) ([]*models.Blackout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Blackout
	for _, b := range s.blackouts {
		if env == "" || b.Environment == env {
			out = append(out, b)
		}
	}
	return out, nil
}

type memOnCalls MemoryStore

func (s *memOnCalls) Create(_ context.Context, oc *models.OnCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oncalls[oc.ID] = oc
	return nil
}

func (s *memOnCalls) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.oncalls, id)
	return nil
}

func (s *memOnCalls) List(_ context.Context, customer string) ([]*models.OnCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.OnCall
	for _, oc := range s.oncalls {
		if oc.Customer == "" || oc.Customer == customer {
			out = append(out, oc)
		}
	}
	return out, nil
}

type memGroups MemoryStore

func (s *memGroups) SetMembers(_ context.Context, groupID string, userIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID] = append([]string(nil), userIDs...)
	return nil
}

func (s *memGroups) Members(_ context.Context, groupID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.groups[groupID]...), nil
}

type memChannels MemoryStore

func (s *memChannels) Create(_ context.Context, c *models.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[c.ID] = c
	return nil
}

func (s *memChannels) GetByID(_ context.Context, id string) (*models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.channels[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *memChannels) List(_ context.Context) ([]*models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memDelays MemoryStore

func (s *memDelays) Upsert(_ context.Context, d *models.DelayedNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.delays {
		if existing.AlertID == d.AlertID && existing.RuleID == d.RuleID {
			delete(s.delays, id)
		}
	}
	s.delays[d.ID] = d
	return nil
}

func (s *memDelays) ListDue(_ context.Context, now time.Time) ([]*models.DelayedNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.DelayedNotification
	for _, d := range s.delays {
		if !d.FireAt.After(now) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

func (s *memDelays) Claim(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.delays[id]; !ok {
		return false, nil
	}
	delete(s.delays, id)
	return true, nil
}

func (s *memDelays) DeleteByAlert(_ context.Context, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.delays {
		if d.AlertID == alertID {
			delete(s.delays, id)
		}
	}
	return nil
}

type memHistory MemoryStore

func (s *memHistory) Create(_ context.Context, h *models.NotificationHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, h)
	return nil
}

func (s *memHistory) List(_ context.Context, limit, offset int) ([]*models.NotificationHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if offset >= len(s.history) {
		return nil, nil
	}
	end := len(s.history)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]*models.NotificationHistory(nil), s.history[offset:end]...), nil
}

func (s *memHistory) Confirm(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.ID == id {
			h.Confirmed = true
			h.ConfirmedTime = &at
			return nil
		}
	}
	return ErrNotFound
}
