package alerting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/alertflow/internal/metrics"
	"github.com/good-yellow-bee/alertflow/internal/models"
	"github.com/good-yellow-bee/alertflow/internal/storage"
)

// Ingest runs one report through the lifecycle state machine: open a new
// alert, fold a duplicate, or apply a severity transition to an existing
// alert found by identity key or correlation. The read-modify-write cycle
// is retried on key races up to Options.IngestRetries before surfacing a
// ConflictError.
func (e *Engine) Ingest(ctx context.Context, report *models.Alert) (*models.Alert, *Transition, error) {
	if err := validateReport(report); err != nil {
		return nil, nil, err
	}

	retries := e.opts.IngestRetries
	if retries < 1 {
		retries = 1
	}

	for attempt := 0; attempt < retries; attempt++ {
		alert, tr, err := e.ingestOnce(ctx, report)
		if errors.Is(err, storage.ErrAlreadyExists) || errors.Is(err, storage.ErrRevisionConflict) {
			// Lost the race; re-read and fold into the winner's state.
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		e.count(&e.stats.Ingested)
		if tr.Kind == TransitionDuplicate {
			e.count(&e.stats.Duplicates)
		}
		metrics.AlertsIngested.WithLabelValues(string(tr.Kind)).Inc()
		return alert, tr, nil
	}

	metrics.IngestConflicts.Inc()
	key := report.Key()
	return nil, nil, &ConflictError{
		Key: fmt.Sprintf("%s/%s/%s/%s", key.Environment, key.Resource, key.Event, key.Customer),
	}
}

func (e *Engine) ingestOnce(ctx context.Context, report *models.Alert) (*models.Alert, *Transition, error) {
	existing, err := e.resolveExisting(ctx, report)
	if err != nil {
		return nil, nil, err
	}

	now := e.now()
	if existing == nil {
		return e.openAlert(ctx, report, now)
	}
	// Only an exact identity-key repeat folds. A correlated hit under a
	// different event name takes the transition path even at equal
	// severity, renaming the event and resetting the fold.
	if existing.Severity == report.Severity && existing.Key() == report.Key() {
		return e.foldDuplicate(ctx, existing, report, now)
	}
	return e.changeSeverity(ctx, existing, report, now)
}

// openAlert creates the first alert for an identity key.
func (e *Engine) openAlert(ctx context.Context, report *models.Alert, now time.Time) (*models.Alert, *Transition, error) {
	alert := *report
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreateTime.IsZero() {
		alert.CreateTime = now
	}
	alert.Status = e.statusFor(report.Severity, models.StatusOpen)
	alert.ReceiveTime = now
	alert.LastReceiveID = alert.ID
	alert.LastReceiveTime = now
	alert.UpdateTime = now
	alert.DuplicateCount = 0
	alert.Repeat = false
	alert.PreviousSeverity = models.SeverityUnknown
	alert.TrendIndication = models.TrendNoChange

	alert.AppendHistory(models.HistoryEntry{
		ID:         alert.ID,
		Event:      alert.Event,
		Severity:   alert.Severity,
		Status:     alert.Status,
		Value:      alert.Value,
		Text:       alert.Text,
		Type:       models.ChangeNew,
		UpdateTime: now,
		Timeout:    alert.Timeout,
	}, e.opts.HistoryLimit)

	if err := e.store.Alerts().Create(ctx, &alert); err != nil {
		return nil, nil, err
	}

	return &alert, &Transition{
		ID:           uuid.NewString(),
		Kind:         TransitionOpened,
		FromSeverity: models.SeverityUnknown,
		ToSeverity:   alert.Severity,
		Status:       alert.Status,
	}, nil
}

// foldDuplicate absorbs a same-severity repeat into the existing alert.
// History grows only when the text changed.
func (e *Engine) foldDuplicate(ctx context.Context, existing, report *models.Alert, now time.Time) (*models.Alert, *Transition, error) {
	alert := *existing
	textChanged := report.Text != alert.Text

	alert.DuplicateCount++
	alert.Repeat = true
	e.applyReport(&alert, report, now)

	if textChanged {
		alert.AppendHistory(models.HistoryEntry{
			ID:         alert.LastReceiveID,
			Event:      alert.Event,
			Severity:   alert.Severity,
			Status:     alert.Status,
			Value:      alert.Value,
			Text:       alert.Text,
			Type:       models.ChangeValue,
			UpdateTime: now,
			Timeout:    alert.Timeout,
		}, e.opts.HistoryLimit)
	}

	if err := e.store.Alerts().Update(ctx, &alert); err != nil {
		return nil, nil, err
	}

	return &alert, &Transition{
		ID:           uuid.NewString(),
		Kind:         TransitionDuplicate,
		FromSeverity: alert.Severity,
		ToSeverity:   alert.Severity,
		Status:       alert.Status,
	}, nil
}

// changeSeverity applies a severity transition, recomputing the trend and
// resetting the duplicate fold. A correlated report renames the event;
// one at equal severity still lands here, with a noChange trend.
func (e *Engine) changeSeverity(ctx context.Context, existing, report *models.Alert, now time.Time) (*models.Alert, *Transition, error) {
	alert := *existing
	from := alert.Severity

	alert.PreviousSeverity = from
	alert.Severity = report.Severity
	alert.TrendIndication = e.trendOf(from, report.Severity)
	alert.DuplicateCount = 0
	alert.Repeat = false
	alert.Event = report.Event
	if len(report.Correlate) > 0 {
		alert.Correlate = report.Correlate
	}
	alert.Status = e.statusFor(report.Severity, alert.Status)
	e.applyReport(&alert, report, now)

	alert.AppendHistory(models.HistoryEntry{
		ID:         alert.LastReceiveID,
		Event:      alert.Event,
		Severity:   alert.Severity,
		Status:     alert.Status,
		Value:      alert.Value,
		Text:       alert.Text,
		Type:       models.ChangeSeverity,
		UpdateTime: now,
		Timeout:    alert.Timeout,
	}, e.opts.HistoryLimit)

	if err := e.store.Alerts().Update(ctx, &alert); err != nil {
		return nil, nil, err
	}

	return &alert, &Transition{
		ID:           uuid.NewString(),
		Kind:         TransitionSeverity,
		FromSeverity: from,
		ToSeverity:   alert.Severity,
		Status:       alert.Status,
	}, nil
}

// applyReport copies the per-receive fields of a report onto the alert.
func (e *Engine) applyReport(alert, report *models.Alert, now time.Time) {
	alert.Value = report.Value
	alert.Text = report.Text
	alert.MergeTags(report.Tags)
	if len(report.Service) > 0 {
		alert.Service = report.Service
	}
	if report.Origin != "" {
		alert.Origin = report.Origin
	}
	if report.Timeout > 0 {
		alert.Timeout = report.Timeout
	}
	for k, v := range report.Attributes {
		if alert.Attributes == nil {
			alert.Attributes = make(map[string]any)
		}
		alert.Attributes[k] = v
	}
	alert.LastReceiveID = uuid.NewString()
	alert.LastReceiveTime = now
	alert.UpdateTime = now
}

// statusFor maps a new severity onto the alert status: clearing severities
// close the alert, anything else reopens a resolved one.
func (e *Engine) statusFor(severity models.Severity, current models.Status) models.Status {
	if e.severityRank(severity) == e.severityRank(models.SeverityNormal) {
		return models.StatusClosed
	}
	if current.IsResolved() || current == "" {
		return models.StatusOpen
	}
	return current
}

// trendOf computes the trend indication for a severity transition using
// the configured ranking. Equal ranks under different labels are noChange.
func (e *Engine) trendOf(from, to models.Severity) models.TrendIndication {
	fromRank, toRank := e.severityRank(from), e.severityRank(to)
	switch {
	case toRank > fromRank:
		return models.TrendMoreSevere
	case toRank < fromRank:
		return models.TrendLessSevere
	default:
		return models.TrendNoChange
	}
}

// SetStatus applies an operator-driven status transition, appending
// history and cancelling pending delayed notifications. Returns the
// updated alert and a status transition, or a nil transition when the
// status is unchanged.
func (e *Engine) SetStatus(ctx context.Context, alertID string, status models.Status, user, text string) (*models.Alert, *Transition, error) {
	retries := e.opts.IngestRetries
	if retries < 1 {
		retries = 1
	}

	for attempt := 0; attempt < retries; attempt++ {
		existing, err := e.store.Alerts().GetByID(ctx, alertID)
		if err != nil {
			return nil, nil, err
		}
		if existing.Status == status {
			return existing, nil, nil
		}

		now := e.now()
		alert := *existing
		alert.Status = status
		alert.UpdateTime = now
		alert.AppendHistory(models.HistoryEntry{
			ID:         uuid.NewString(),
			Event:      alert.Event,
			Severity:   alert.Severity,
			Status:     status,
			Value:      alert.Value,
			Text:       text,
			Type:       models.ChangeStatus,
			UpdateTime: now,
			User:       user,
		}, e.opts.HistoryLimit)

		if err := e.store.Alerts().Update(ctx, &alert); err != nil {
			if errors.Is(err, storage.ErrRevisionConflict) {
				continue
			}
			return nil, nil, err
		}

		// A status change supersedes anything still waiting on the old
		// state. Rules naming the new status re-create delays as needed.
		if err := e.store.Delays().DeleteByAlert(ctx, alert.ID); err != nil {
			log.Printf("warning: failed to cancel delayed notifications for alert %s: %v", alert.ID, err)
		}

		return &alert, &Transition{
			ID:           uuid.NewString(),
			Kind:         TransitionStatus,
			FromSeverity: alert.Severity,
			ToSeverity:   alert.Severity,
			Status:       status,
		}, nil
	}

	return nil, nil, &ConflictError{Key: alertID}
}

// IsFlapping reports whether the alert changed severity more than the
// configured count within the flapping window ending at now.
func (e *Engine) IsFlapping(alert *models.Alert, now time.Time) bool {
	cutoff := now.Add(-e.opts.FlappingWindow)
	changes := 0
	for _, h := range alert.History {
		if h.Type != models.ChangeSeverity {
			continue
		}
		if h.UpdateTime.Before(cutoff) {
			break
		}
		changes++
	}
	return changes > e.opts.FlappingCount
}
