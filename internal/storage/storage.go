// Package storage provides persistence interfaces and implementations for
// alertflow entities.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when creating an alert whose identity
	// key is already live.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrRevisionConflict is returned by conditional updates when the
	// record changed since it was read.
	ErrRevisionConflict = errors.New("revision conflict")
)

// Store is the storage collaborator consumed by the alerting engine.
type Store interface {
	// Open initializes the backing store.
	Open() error
	// Close releases the backing store.
	Close() error
	// Migrate creates or upgrades the schema.
	Migrate() error

	Alerts() AlertRepository
	NotificationRules() NotificationRuleRepository
	EscalationRules() EscalationRuleRepository
	Blackouts() BlackoutRepository
	OnCalls() OnCallRepository
	Groups() GroupRepository
	Channels() ChannelRepository
	Delays() DelayRepository
	NotificationHistory() NotificationHistoryRepository
}

// AlertRepository persists alerts. Create and Update are the atomic
// primitives the lifecycle state machine builds its read-modify-write
// cycle on: Create fails with ErrAlreadyExists when the identity key is
// taken, Update fails with ErrRevisionConflict when the stored revision
// no longer matches.
type AlertRepository interface {
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	GetByKey(ctx context.Context, key models.AlertKey) (*models.Alert, error)
	// FindCorrelated returns an alert sharing environment, resource and
	// customer whose correlate list contains the given event.
	FindCorrelated(ctx context.Context, env, resource, customer, event string) (*models.Alert, error)
	Create(ctx context.Context, alert *models.Alert) error
	// Update applies the alert conditioned on the revision it was read
	// at, bumping the stored revision on success.
	Update(ctx context.Context, alert *models.Alert) error
	ListOpen(ctx context.Context) ([]*models.Alert, error)
	Delete(ctx context.Context, id string) error
}

// NotificationRuleRepository persists notification rules.
type NotificationRuleRepository interface {
	Create(ctx context.Context, rule *models.NotificationRule) error
	GetByID(ctx context.Context, id string) (*models.NotificationRule, error)
	Update(ctx context.Context, rule *models.NotificationRule) error
	Delete(ctx context.Context, id string) error
	// ListByEnvironment returns rules scoped to the environment. An empty
	// environment lists all rules.
	ListByEnvironment(ctx context.Context, env string) ([]*models.NotificationRule, error)
	// Reactivate enables inactive rules whose reactivate timestamp has
	// passed, returning how many were flipped.
	Reactivate(ctx context.Context, now time.Time) (int, error)
}

// EscalationRuleRepository persists escalation rules.
type EscalationRuleRepository interface {
	Create(ctx context.Context, rule *models.EscalationRule) error
	GetByID(ctx context.Context, id string) (*models.EscalationRule, error)
	Update(ctx context.Context, rule *models.EscalationRule) error
	Delete(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*models.EscalationRule, error)
}

// BlackoutRepository persists suppression windows.
type BlackoutRepository interface {
	Create(ctx context.Context, blackout *models.Blackout) error
	Delete(ctx context.Context, id string) error
	ListByEnvironment(ctx context.Context, env string) ([]*models.Blackout, error)
}

// OnCallRepository persists on-call rotations.
type OnCallRepository interface {
	Create(ctx context.Context, oncall *models.OnCall) error
	Delete(ctx context.Context, id string) error
	// List returns rotations for the customer plus customer-less ones.
	List(ctx context.Context, customer string) ([]*models.OnCall, error)
}

// GroupRepository resolves notification group membership.
type GroupRepository interface {
	SetMembers(ctx context.Context, groupID string, userIDs []string) error
	Members(ctx context.Context, groupID string) ([]string, error)
}

// ChannelRepository persists notification channels.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	List(ctx context.Context) ([]*models.Channel, error)
}

// DelayRepository persists pending delayed notifications. Claim is the
// multi-worker safety primitive: it deletes the marker and reports whether
// this caller won it.
type DelayRepository interface {
	// Upsert creates or replaces the marker for (alert, rule).
	Upsert(ctx context.Context, delay *models.DelayedNotification) error
	ListDue(ctx context.Context, now time.Time) ([]*models.DelayedNotification, error)
	Claim(ctx context.Context, id string) (bool, error)
	DeleteByAlert(ctx context.Context, alertID string) error
}

// NotificationHistoryRepository records send outcomes.
type NotificationHistoryRepository interface {
	Create(ctx context.Context, h *models.NotificationHistory) error
	List(ctx context.Context, limit, offset int) ([]*models.NotificationHistory, error)
	Confirm(ctx context.Context, id string, at time.Time) error
}
