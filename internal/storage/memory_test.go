package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

func testAlert(id, resource, event string) *models.Alert {
	return &models.Alert{
		ID:          id,
		Environment: "production",
		Resource:    resource,
		Event:       event,
		Severity:    models.SeverityCritical,
		Status:      models.StatusOpen,
	}
}

func TestAlertCreateConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Alerts().Create(ctx, testAlert("a1", "web01", "NodeDown")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.Alerts().Create(ctx, testAlert("a2", "web01", "NodeDown"))
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("create with taken key: got %v, want ErrAlreadyExists", err)
	}
	// A different resource is a different identity.
	if err := store.Alerts().Create(ctx, testAlert("a3", "web02", "NodeDown")); err != nil {
		t.Fatalf("create distinct key: %v", err)
	}
}

func TestAlertUpdateRevisionConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Alerts().Create(ctx, testAlert("a1", "web01", "NodeDown")); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := store.Alerts().GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	second, err := store.Alerts().GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	first.Value = "1"
	if err := store.Alerts().Update(ctx, first); err != nil {
		t.Fatalf("first update: %v", err)
	}

	second.Value = "2"
	if err := store.Alerts().Update(ctx, second); !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("stale update: got %v, want ErrRevisionConflict", err)
	}

	// The winning write is visible.
	got, err := store.Alerts().GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Value != "1" {
		t.Errorf("value = %q, want %q", got.Value, "1")
	}
}

func TestFindCorrelated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a := testAlert("a1", "web01", "NodeUp")
	a.Correlate = []string{"NodeUp", "NodeDown"}
	if err := store.Alerts().Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Alerts().FindCorrelated(ctx, "production", "web01", "", "NodeDown")
	if err != nil {
		t.Fatalf("find correlated: %v", err)
	}
	if got.ID != "a1" {
		t.Errorf("correlated alert = %q, want a1", got.ID)
	}

	if _, err := store.Alerts().FindCorrelated(ctx, "production", "web02", "", "NodeDown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("different resource: got %v, want ErrNotFound", err)
	}
	if _, err := store.Alerts().FindCorrelated(ctx, "production", "web01", "acme", "NodeDown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("different customer: got %v, want ErrNotFound", err)
	}
}

func TestDelayUpsertAndClaim(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	d1 := &models.DelayedNotification{ID: "d1", AlertID: "a1", RuleID: "r1", FireAt: now.Add(10 * time.Minute)}
	if err := store.Delays().Upsert(ctx, d1); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Not due yet.
	due, err := store.Delays().ListDue(ctx, now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("due before fire time: got %d markers", len(due))
	}

	// Upsert for the same (alert, rule) replaces the marker.
	d2 := &models.DelayedNotification{ID: "d2", AlertID: "a1", RuleID: "r1", FireAt: now.Add(5 * time.Minute)}
	if err := store.Delays().Upsert(ctx, d2); err != nil {
		t.Fatalf("upsert replace: %v", err)
	}

	due, err = store.Delays().ListDue(ctx, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "d2" {
		t.Fatalf("due markers = %+v, want single d2", due)
	}

	// Only one claimant wins.
	won, err := store.Delays().Claim(ctx, "d2")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !won {
		t.Fatal("first claim must win")
	}
	won, err = store.Delays().Claim(ctx, "d2")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won {
		t.Fatal("second claim must lose")
	}
}

func TestDelayDeleteByAlert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, d := range []*models.DelayedNotification{
		{ID: "d1", AlertID: "a1", RuleID: "r1", FireAt: now},
		{ID: "d2", AlertID: "a1", RuleID: "r2", FireAt: now},
		{ID: "d3", AlertID: "a2", RuleID: "r1", FireAt: now},
	} {
		if err := store.Delays().Upsert(ctx, d); err != nil {
			t.Fatalf("upsert %s: %v", d.ID, err)
		}
	}

	if err := store.Delays().DeleteByAlert(ctx, "a1"); err != nil {
		t.Fatalf("delete by alert: %v", err)
	}
	due, err := store.Delays().ListDue(ctx, now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "d3" {
		t.Fatalf("remaining markers = %+v, want single d3", due)
	}
}

func TestRuleReactivate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	rules := []*models.NotificationRule{
		{ID: "due", Active: false, Reactivate: &past},
		{ID: "later", Active: false, Reactivate: &future},
		{ID: "manual", Active: false},
	}
	for _, r := range rules {
		if err := store.NotificationRules().Create(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.ID, err)
		}
	}

	n, err := store.NotificationRules().Reactivate(ctx, now)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if n != 1 {
		t.Fatalf("reactivated = %d, want 1", n)
	}

	got, err := store.NotificationRules().GetByID(ctx, "due")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Active || got.Reactivate != nil {
		t.Errorf("rule due: active=%v reactivate=%v, want active with cleared timestamp", got.Active, got.Reactivate)
	}
	if got, _ := store.NotificationRules().GetByID(ctx, "later"); got.Active {
		t.Error("rule later must stay inactive")
	}
}

func TestNotificationHistoryConfirm(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.NotificationHistory().Create(ctx, &models.NotificationHistory{ID: "h1", Sent: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.NotificationHistory().Confirm(ctx, "h1", at); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := store.NotificationHistory().Confirm(ctx, "missing", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("confirm missing: got %v, want ErrNotFound", err)
	}

	list, err := store.NotificationHistory().List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || !list[0].Confirmed || list[0].ConfirmedTime == nil {
		t.Fatalf("history = %+v, want confirmed entry", list)
	}
}

func TestGroupMembers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if members, err := store.Groups().Members(ctx, "unknown"); err != nil || len(members) != 0 {
		t.Fatalf("unknown group: members=%v err=%v, want empty and nil", members, err)
	}
	if err := store.Groups().SetMembers(ctx, "netops", []string{"alice", "bob"}); err != nil {
		t.Fatalf("set members: %v", err)
	}
	members, err := store.Groups().Members(ctx, "netops")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %v, want 2 entries", members)
	}
}
