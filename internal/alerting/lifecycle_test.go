package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
	"github.com/good-yellow-bee/alertflow/internal/storage"
)

func TestIngestOpensNewAlert(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	alert, tr, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if tr.Kind != TransitionOpened {
		t.Fatalf("kind = %s, want opened", tr.Kind)
	}
	if alert.ID == "" {
		t.Error("alert must get an id")
	}
	if alert.Status != models.StatusOpen {
		t.Errorf("status = %s, want open", alert.Status)
	}
	if alert.DuplicateCount != 0 || alert.Repeat {
		t.Errorf("duplicate_count=%d repeat=%v, want 0/false", alert.DuplicateCount, alert.Repeat)
	}
	if len(alert.History) != 1 || alert.History[0].Type != models.ChangeNew {
		t.Errorf("history = %+v, want single new entry", alert.History)
	}
	if !alert.ReceiveTime.Equal(testNow) || !alert.LastReceiveTime.Equal(testNow) {
		t.Error("receive times must be set to the ingest instant")
	}
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	report := newReport("", "NodeDown", models.SeverityCritical)
	_, _, err := engine.Ingest(ctx, report)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if verr.Field != "resource" {
		t.Errorf("field = %q, want resource", verr.Field)
	}
}

func TestIngestFoldsDuplicate(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	first, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	// Same key and severity and same text: fold, no history growth.
	dup, tr, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
	if err != nil {
		t.Fatalf("duplicate ingest: %v", err)
	}
	if tr.Kind != TransitionDuplicate {
		t.Fatalf("kind = %s, want duplicate", tr.Kind)
	}
	if dup.ID != first.ID {
		t.Error("duplicate must fold into the existing alert, not open a new one")
	}
	if dup.DuplicateCount != 1 || !dup.Repeat {
		t.Errorf("duplicate_count=%d repeat=%v, want 1/true", dup.DuplicateCount, dup.Repeat)
	}
	if len(dup.History) != 1 {
		t.Errorf("history length = %d, want 1 (no entry for unchanged text)", len(dup.History))
	}

	// Changed text on a duplicate records a value change.
	changed := newReport("web01", "NodeDown", models.SeverityCritical)
	changed.Text = "node is still down"
	dup2, _, err := engine.Ingest(ctx, changed)
	if err != nil {
		t.Fatalf("third ingest: %v", err)
	}
	if dup2.DuplicateCount != 2 {
		t.Errorf("duplicate_count = %d, want 2", dup2.DuplicateCount)
	}
	if len(dup2.History) != 2 || dup2.History[0].Type != models.ChangeValue {
		t.Errorf("history = %+v, want value-change entry first", dup2.History)
	}
}

func TestIngestSeverityTransition(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	if _, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityWarning)); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityWarning)); err != nil {
		t.Fatalf("duplicate ingest: %v", err)
	}

	alert, tr, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
	if err != nil {
		t.Fatalf("escalating ingest: %v", err)
	}
	if tr.Kind != TransitionSeverity {
		t.Fatalf("kind = %s, want severity", tr.Kind)
	}
	if tr.FromSeverity != models.SeverityWarning || tr.ToSeverity != models.SeverityCritical {
		t.Errorf("transition = %s->%s, want warning->critical", tr.FromSeverity, tr.ToSeverity)
	}
	if alert.PreviousSeverity != models.SeverityWarning {
		t.Errorf("previous_severity = %s, want warning", alert.PreviousSeverity)
	}
	if alert.TrendIndication != models.TrendMoreSevere {
		t.Errorf("trend = %s, want moreSevere", alert.TrendIndication)
	}
	if alert.DuplicateCount != 0 || alert.Repeat {
		t.Errorf("duplicate fold must reset: count=%d repeat=%v", alert.DuplicateCount, alert.Repeat)
	}
	if alert.History[0].Type != models.ChangeSeverity {
		t.Errorf("newest history type = %s, want severity", alert.History[0].Type)
	}

	// De-escalation trends the other way.
	alert, _, err = engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityMinor))
	if err != nil {
		t.Fatalf("de-escalating ingest: %v", err)
	}
	if alert.TrendIndication != models.TrendLessSevere {
		t.Errorf("trend = %s, want lessSevere", alert.TrendIndication)
	}
}

func TestIngestNormalSeverityCloses(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	if _, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	alert, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityNormal))
	if err != nil {
		t.Fatalf("clearing ingest: %v", err)
	}
	if alert.Status != models.StatusClosed {
		t.Fatalf("status = %s, want closed", alert.Status)
	}

	// A non-clearing severity on the closed alert reopens it.
	alert, _, err = engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityMajor))
	if err != nil {
		t.Fatalf("reopening ingest: %v", err)
	}
	if alert.Status != models.StatusOpen {
		t.Errorf("status = %s, want open after reopen", alert.Status)
	}
}

func TestIngestCorrelation(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newTestEngine(t)

	down := newReport("web01", "NodeDown", models.SeverityCritical)
	down.Correlate = []string{"NodeDown", "NodeUp"}
	opened, _, err := engine.Ingest(ctx, down)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// A correlated event under a different name folds into the same alert
	// and renames its event.
	up := newReport("web01", "NodeUp", models.SeverityNormal)
	alert, tr, err := engine.Ingest(ctx, up)
	if err != nil {
		t.Fatalf("correlated ingest: %v", err)
	}
	if alert.ID != opened.ID {
		t.Fatal("correlated report must not open a new alert")
	}
	if tr.Kind != TransitionSeverity {
		t.Fatalf("kind = %s, want severity", tr.Kind)
	}
	if alert.Event != "NodeUp" {
		t.Errorf("event = %q, want NodeUp", alert.Event)
	}
	if alert.Status != models.StatusClosed {
		t.Errorf("status = %s, want closed", alert.Status)
	}
}

func TestIngestCorrelatedSameSeverity(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newTestEngine(t)

	down := newReport("web01", "NodeDown", models.SeverityCritical)
	down.Correlate = []string{"NodeDown", "DiskFull"}
	opened, _, err := engine.Ingest(ctx, down)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// A correlated event at the same severity is not a duplicate: the
	// event is renamed and the fold resets.
	alert, tr, err := engine.Ingest(ctx, newReport("web01", "DiskFull", models.SeverityCritical))
	if err != nil {
		t.Fatalf("correlated ingest: %v", err)
	}
	if tr.Kind == TransitionDuplicate {
		t.Fatal("correlated report must not fold as a duplicate")
	}
	if alert.ID != opened.ID {
		t.Fatal("correlated report must not open a new alert")
	}
	if alert.Event != "DiskFull" {
		t.Errorf("event = %q, want DiskFull", alert.Event)
	}
	if alert.DuplicateCount != 0 || alert.Repeat {
		t.Errorf("duplicate_count=%d repeat=%v, want 0/false", alert.DuplicateCount, alert.Repeat)
	}
	if alert.TrendIndication != models.TrendNoChange {
		t.Errorf("trend = %s, want noChange", alert.TrendIndication)
	}
	if alert.History[0].Type != models.ChangeSeverity || alert.History[0].Event != "DiskFull" {
		t.Errorf("newest history = %+v, want a transition entry for DiskFull", alert.History[0])
	}

	if tr.FromSeverity != models.SeverityCritical || tr.ToSeverity != models.SeverityCritical {
		t.Errorf("transition = %s->%s, want critical->critical", tr.FromSeverity, tr.ToSeverity)
	}

	open, err := store.Alerts().ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(open))
	}
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newTestEngine(t)

	alert, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	updated, tr, err := engine.SetStatus(ctx, alert.ID, models.StatusAck, "alice", "looking into it")
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if tr == nil || tr.Kind != TransitionStatus || tr.Status != models.StatusAck {
		t.Fatalf("transition = %+v, want status->ack", tr)
	}
	if updated.Status != models.StatusAck {
		t.Errorf("status = %s, want ack", updated.Status)
	}
	if updated.History[0].Type != models.ChangeStatus || updated.History[0].User != "alice" {
		t.Errorf("newest history = %+v, want status entry by alice", updated.History[0])
	}

	// Setting the same status again is a no-op with a nil transition.
	same, tr, err := engine.SetStatus(ctx, alert.ID, models.StatusAck, "alice", "")
	if err != nil {
		t.Fatalf("repeat set status: %v", err)
	}
	if tr != nil {
		t.Error("unchanged status must produce a nil transition")
	}
	if len(same.History) != len(updated.History) {
		t.Error("unchanged status must not append history")
	}

	// Severity is untouched by status transitions.
	got, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Severity != models.SeverityCritical {
		t.Errorf("severity = %s, want critical", got.Severity)
	}
}

func TestSetStatusCancelsDelays(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newTestEngine(t)

	alert, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	delay := &models.DelayedNotification{ID: "d1", AlertID: alert.ID, RuleID: "r1", FireAt: testNow.Add(10 * time.Minute)}
	if err := store.Delays().Upsert(ctx, delay); err != nil {
		t.Fatalf("upsert delay: %v", err)
	}

	if _, _, err := engine.SetStatus(ctx, alert.ID, models.StatusClosed, "alice", ""); err != nil {
		t.Fatalf("set status: %v", err)
	}

	due, err := store.Delays().ListDue(ctx, testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("pending delays = %d, want 0 after status change", len(due))
	}
}

func TestIsFlapping(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	alert := &models.Alert{}
	// Three severity changes inside the window, newest first.
	for i := 3; i >= 1; i-- {
		alert.History = append(alert.History, models.HistoryEntry{
			Type:       models.ChangeSeverity,
			UpdateTime: testNow.Add(-time.Duration(i*20) * time.Second),
		})
	}
	if !engine.IsFlapping(alert, testNow) {
		t.Error("three severity changes in the window must flag as flapping")
	}

	stale := &models.Alert{History: []models.HistoryEntry{
		{Type: models.ChangeSeverity, UpdateTime: testNow.Add(-10 * time.Second)},
		{Type: models.ChangeSeverity, UpdateTime: testNow.Add(-10 * time.Minute)},
		{Type: models.ChangeSeverity, UpdateTime: testNow.Add(-11 * time.Minute)},
	}}
	if engine.IsFlapping(stale, testNow) {
		t.Error("changes outside the window must not count")
	}
}

// raceStore wraps a MemoryStore so tests can inject the read misses and
// write conflicts a lost ingest race produces.
type raceStore struct {
	storage.Store
	alerts *raceAlerts
}

func (s *raceStore) Alerts() storage.AlertRepository { return s.alerts }

type raceAlerts struct {
	storage.AlertRepository
	keyMisses       int
	updateConflicts int
}

func (r *raceAlerts) GetByKey(ctx context.Context, key models.AlertKey) (*models.Alert, error) {
	if r.keyMisses > 0 {
		r.keyMisses--
		return nil, storage.ErrNotFound
	}
	return r.AlertRepository.GetByKey(ctx, key)
}

func (r *raceAlerts) Update(ctx context.Context, alert *models.Alert) error {
	if r.updateConflicts > 0 {
		r.updateConflicts--
		return storage.ErrRevisionConflict
	}
	return r.AlertRepository.Update(ctx, alert)
}

func newRacingEngine(t *testing.T, mem *storage.MemoryStore, alerts *raceAlerts) *Engine {
	t.Helper()
	alerts.AlertRepository = mem.Alerts()
	engine := NewEngine(&raceStore{Store: mem, alerts: alerts}, &fakeSender{}, nil, nil)
	engine.SetClock(func() time.Time { return testNow })
	return engine
}

func TestIngestConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	opts := DefaultOptions()
	opts.IngestRetries = 10
	engine := NewEngine(store, &fakeSender{}, nil, opts)
	engine.SetClock(func() time.Time { return testNow })

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent ingest: %v", err)
		}
	}

	open, err := store.Alerts().ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open alerts = %d, want 1 record for %d racing ingests", len(open), workers)
	}
	if open[0].DuplicateCount != workers-1 {
		t.Errorf("duplicate_count = %d, want %d (every loser converges)", open[0].DuplicateCount, workers-1)
	}
}

func TestIngestRetriesLostCreateRace(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()

	winner := NewEngine(mem, &fakeSender{}, nil, nil)
	winner.SetClock(func() time.Time { return testNow })
	if _, _, err := winner.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical)); err != nil {
		t.Fatalf("winner ingest: %v", err)
	}

	// The loser's first read races ahead of the winner's commit: it finds
	// no alert, loses the create, and must re-read and fold.
	engine := newRacingEngine(t, mem, &raceAlerts{keyMisses: 1})
	alert, tr, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
	if err != nil {
		t.Fatalf("losing ingest: %v", err)
	}
	if tr.Kind != TransitionDuplicate {
		t.Fatalf("kind = %s, want duplicate after retry", tr.Kind)
	}
	if alert.DuplicateCount != 1 {
		t.Errorf("duplicate_count = %d, want 1", alert.DuplicateCount)
	}

	open, err := mem.Alerts().ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(open))
	}
}

func TestIngestRetriesRevisionConflict(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()

	winner := NewEngine(mem, &fakeSender{}, nil, nil)
	winner.SetClock(func() time.Time { return testNow })
	if _, _, err := winner.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical)); err != nil {
		t.Fatalf("winner ingest: %v", err)
	}

	engine := newRacingEngine(t, mem, &raceAlerts{updateConflicts: 1})
	alert, tr, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
	if err != nil {
		t.Fatalf("conflicted ingest: %v", err)
	}
	if tr.Kind != TransitionDuplicate {
		t.Fatalf("kind = %s, want duplicate", tr.Kind)
	}
	// The stale first attempt is discarded; the retry folds exactly once.
	if alert.DuplicateCount != 1 {
		t.Errorf("duplicate_count = %d, want 1", alert.DuplicateCount)
	}
}

func TestIngestConflictExhaustion(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()

	winner := NewEngine(mem, &fakeSender{}, nil, nil)
	winner.SetClock(func() time.Time { return testNow })
	if _, _, err := winner.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical)); err != nil {
		t.Fatalf("winner ingest: %v", err)
	}

	// Every attempt misses the read and loses the create.
	engine := newRacingEngine(t, mem, &raceAlerts{keyMisses: 100})
	_, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical))
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want ConflictError after exhausted retries", err)
	}
}

func TestIngestIdempotentIdentity(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newTestEngine(t)

	for i := 0; i < 5; i++ {
		if _, _, err := engine.Ingest(ctx, newReport("web01", "NodeDown", models.SeverityCritical)); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	open, err := store.Alerts().ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open alerts = %d, want 1 live alert per identity key", len(open))
	}
	if open[0].DuplicateCount != 4 {
		t.Errorf("duplicate_count = %d, want 4", open[0].DuplicateCount)
	}
}
