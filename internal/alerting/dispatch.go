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
	"github.com/good-yellow-bee/alertflow/internal/notifier"
	"github.com/good-yellow-bee/alertflow/internal/storage"
)

// DispatchIntent is one (alert, rule, recipients) tuple ready for the
// channel sender.
type DispatchIntent struct {
	Alert        *models.Alert
	Rule         *models.NotificationRule
	TransitionID string
	Recipients   []string
	Message      string
}

// EvaluateNotifications runs a transition through the notification rules
// of the alert's environment. Rules with a delay produce a pending
// DelayedNotification instead of an intent; duplicate folds produce
// nothing. Delays are created even under an active blackout, since the
// window may have passed by the time the sweep fires them.
func (e *Engine) EvaluateNotifications(ctx context.Context, alert *models.Alert, tr *Transition) ([]DispatchIntent, error) {
	return e.evaluateAt(ctx, alert, tr, e.now(), true)
}

func (e *Engine) evaluateAt(ctx context.Context, alert *models.Alert, tr *Transition, now time.Time, allowDelay bool) ([]DispatchIntent, error) {
	if tr == nil || tr.Kind == TransitionDuplicate {
		return nil, nil
	}

	rules, err := e.activeRules(ctx, alert.Environment)
	if err != nil {
		return nil, err
	}
	matched := MatchNotificationRules(rules, alert, now)
	if len(matched) == 0 {
		return nil, nil
	}

	suppressed, err := e.suppressed(ctx, alert, now)
	if err != nil {
		return nil, err
	}

	var intents []DispatchIntent
	for _, rule := range matched {
		if !TriggerFires(rule.Triggers, tr) {
			continue
		}

		if allowDelay && rule.DelayTime > 0 {
			delay := &models.DelayedNotification{
				ID:      uuid.NewString(),
				AlertID: alert.ID,
				RuleID:  rule.ID,
				FireAt:  now.Add(rule.DelayTime),
			}
			if err := e.store.Delays().Upsert(ctx, delay); err != nil {
				return nil, fmt.Errorf("schedule delayed notification: %w", err)
			}
			metrics.NotificationsDelayed.Inc()
			continue
		}

		if suppressed {
			e.count(&e.stats.Suppressed)
			metrics.NotificationsSuppressed.Inc()
			continue
		}

		intent, err := e.buildIntent(ctx, alert, rule, tr, now)
		if err != nil {
			return nil, err
		}
		if intent != nil {
			intents = append(intents, *intent)
		}
	}
	return intents, nil
}

// buildIntent resolves recipients and renders the message for one firing
// rule. A no-coverage outcome is recorded, not propagated.
func (e *Engine) buildIntent(ctx context.Context, alert *models.Alert, rule *models.NotificationRule, tr *Transition, now time.Time) (*DispatchIntent, error) {
	recipients, err := e.resolveRecipients(ctx, rule, alert.Customer, now)
	if errors.Is(err, ErrNoOnCallCoverage) {
		log.Printf("warning: no on-call coverage for rule %s, alert %s", rule.ID, alert.ID)
		e.recordOutcome(ctx, &models.NotificationHistory{
			ID:        uuid.NewString(),
			Sent:      false,
			ChannelID: rule.ChannelID,
			RuleID:    rule.ID,
			AlertID:   alert.ID,
			Error:     ErrNoOnCallCoverage.Error(),
			SentTime:  now,
		})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	firing := FiringTrigger(rule.Triggers, tr)
	message := notifier.RenderMessage(TriggerText(rule, firing), alert)

	return &DispatchIntent{
		Alert:        alert,
		Rule:         rule,
		TransitionID: tr.ID,
		Recipients:   recipients,
		Message:      message,
	}, nil
}

// Dispatch sends the intents through the channel sender, guarded so one
// transition notifies at most once per rule across workers. Send failures
// are recorded in the notification history, never propagated.
func (e *Engine) Dispatch(ctx context.Context, intents []DispatchIntent) {
	for i := range intents {
		e.dispatchOne(ctx, &intents[i])
	}
}

func (e *Engine) dispatchOne(ctx context.Context, intent *DispatchIntent) {
	key := fmt.Sprintf("%s:%s:%s", intent.Alert.ID, intent.Rule.ID, intent.TransitionID)
	won, err := e.guard.Acquire(ctx, key, e.opts.ClaimTTL)
	if err != nil {
		log.Printf("warning: claim guard error for %s: %v", key, err)
		return
	}
	if !won {
		return
	}

	channel, err := e.store.Channels().GetByID(ctx, intent.Rule.ChannelID)
	if err != nil {
		log.Printf("warning: channel %s for rule %s: %v", intent.Rule.ChannelID, intent.Rule.ID, err)
		return
	}

	now := e.now()
	for _, receiver := range intent.Recipients {
		sendErr := e.sendWithRetry(ctx, channel, receiver, intent.Message)

		outcome := &models.NotificationHistory{
			ID:        uuid.NewString(),
			Sent:      sendErr == nil,
			Message:   intent.Message,
			ChannelID: channel.ID,
			RuleID:    intent.Rule.ID,
			AlertID:   intent.Alert.ID,
			Sender:    channel.Sender,
			Receiver:  receiver,
			SentTime:  now,
		}
		if sendErr != nil {
			outcome.Error = sendErr.Error()
			e.count(&e.stats.Failed)
			metrics.NotificationsSent.WithLabelValues(channel.Type, "error").Inc()
		} else {
			e.count(&e.stats.Dispatched)
			metrics.NotificationsSent.WithLabelValues(channel.Type, "ok").Inc()
		}
		e.recordOutcome(ctx, outcome)
	}
}

// sendWithRetry wraps the external sender with a per-attempt timeout and a
// bounded retry count.
func (e *Engine) sendWithRetry(ctx context.Context, channel *models.Channel, receiver, message string) error {
	attempts := e.opts.SendRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		sendCtx, cancel := context.WithTimeout(ctx, e.opts.SendTimeout)
		lastErr = e.sender.Send(sendCtx, channel, receiver, message)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (e *Engine) recordOutcome(ctx context.Context, h *models.NotificationHistory) {
	if err := e.store.NotificationHistory().Create(ctx, h); err != nil {
		log.Printf("warning: failed to record notification outcome: %v", err)
	}
}

// SweepDelayed promotes due delayed notifications and dispatches them.
// Claim-before-send makes the sweep safe to run from multiple workers:
// the marker is deleted first, and only the deleting worker sends. Alerts
// that resolved while the delay ran are dropped silently.
func (e *Engine) SweepDelayed(ctx context.Context, now time.Time) ([]DispatchIntent, error) {
	due, err := e.store.Delays().ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due notifications: %w", err)
	}

	var intents []DispatchIntent
	for _, d := range due {
		won, err := e.store.Delays().Claim(ctx, d.ID)
		if err != nil {
			return intents, err
		}
		if !won {
			continue
		}

		intent, err := e.promoteDelay(ctx, d, now)
		if err != nil {
			log.Printf("warning: failed to promote delayed notification %s: %v", d.ID, err)
			continue
		}
		if intent != nil {
			intents = append(intents, *intent)
		}
	}

	e.Dispatch(ctx, intents)
	return intents, nil
}

func (e *Engine) promoteDelay(ctx context.Context, d *models.DelayedNotification, now time.Time) (*DispatchIntent, error) {
	alert, err := e.store.Alerts().GetByID(ctx, d.AlertID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if alert.Status.IsResolved() {
		return nil, nil
	}

	rule, err := e.store.NotificationRules().GetByID(ctx, d.RuleID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// The rule may have changed since the delay was scheduled.
	if !ruleUsable(rule.Active, rule.Reactivate, now) || !ScopeMatches(&rule.RuleScope, alert) {
		return nil, nil
	}

	suppressed, err := e.suppressed(ctx, alert, now)
	if err != nil {
		return nil, err
	}
	if suppressed {
		e.count(&e.stats.Suppressed)
		metrics.NotificationsSuppressed.Inc()
		return nil, nil
	}

	tr := &Transition{
		ID:           uuid.NewString(),
		Kind:         TransitionSeverity,
		FromSeverity: alert.PreviousSeverity,
		ToSeverity:   alert.Severity,
		Status:       alert.Status,
	}
	return e.buildIntent(ctx, alert, rule, tr, now)
}

// SweepEscalations re-fires dispatch for open alerts matching an active
// escalation rule whose cadence has elapsed since the alert last received
// a report. Each cadence bucket fires once across workers via the claim
// guard.
func (e *Engine) SweepEscalations(ctx context.Context, now time.Time) ([]DispatchIntent, error) {
	rules, err := e.store.EscalationRules().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list escalation rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	alerts, err := e.store.Alerts().ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open alerts: %w", err)
	}

	var all []DispatchIntent
	for _, alert := range alerts {
		tr := &Transition{
			ID:           uuid.NewString(),
			Kind:         TransitionSeverity,
			FromSeverity: alert.PreviousSeverity,
			ToSeverity:   alert.Severity,
			Status:       alert.Status,
		}

		for _, rule := range MatchEscalationRules(rules, alert, now) {
			if rule.Every <= 0 {
				continue
			}
			elapsed := now.Sub(alert.LastReceiveTime)
			if elapsed < rule.Every {
				continue
			}
			if !TriggerFires(rule.Triggers, tr) {
				continue
			}

			// One fire per cadence period per (alert, rule).
			bucket := int64(elapsed / rule.Every)
			key := fmt.Sprintf("esc:%s:%s:%d", alert.ID, rule.ID, bucket)
			won, err := e.guard.Acquire(ctx, key, rule.Every)
			if err != nil {
				log.Printf("warning: claim guard error for %s: %v", key, err)
				continue
			}
			if !won {
				continue
			}

			intents, err := e.evaluateAt(ctx, alert, tr, now, false)
			if err != nil {
				log.Printf("warning: escalation evaluation for alert %s: %v", alert.ID, err)
				continue
			}
			if len(intents) > 0 {
				metrics.EscalationsFired.Inc()
				all = append(all, intents...)
			}
		}
	}

	e.Dispatch(ctx, all)
	return all, nil
}
