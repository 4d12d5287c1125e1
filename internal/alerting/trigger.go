package alerting

import (
	"strings"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// TriggerFires decides whether the transition satisfies the rule's trigger
// list. An empty list fires on any severity transition; status transitions
// only fire triggers that explicitly name the new status. Empty set fields
// inside a trigger act as wildcards.
func TriggerFires(triggers []models.Trigger, tr *Transition) bool {
	if tr.Kind == TransitionStatus {
		for _, t := range triggers {
			if !containsStatus(t.Status, tr.Status) {
				continue
			}
			if matchesSeverities(t, tr) {
				return true
			}
		}
		return false
	}

	if len(triggers) == 0 {
		return true
	}
	for _, t := range triggers {
		if len(t.Status) > 0 && !containsStatus(t.Status, tr.Status) {
			continue
		}
		if matchesSeverities(t, tr) {
			return true
		}
	}
	return false
}

func matchesSeverities(t models.Trigger, tr *Transition) bool {
	if len(t.FromSeverity) > 0 && !containsSeverity(t.FromSeverity, tr.FromSeverity) {
		return false
	}
	if len(t.ToSeverity) > 0 && !containsSeverity(t.ToSeverity, tr.ToSeverity) {
		return false
	}
	return true
}

// FiringTrigger returns the first trigger entry matching the transition,
// or nil for an empty list firing as a wildcard. Its Text, when set,
// overrides the rule text for this dispatch.
func FiringTrigger(triggers []models.Trigger, tr *Transition) *models.Trigger {
	for i := range triggers {
		t := &triggers[i]
		if tr.Kind == TransitionStatus {
			if containsStatus(t.Status, tr.Status) && matchesSeverities(*t, tr) {
				return t
			}
			continue
		}
		if len(t.Status) > 0 && !containsStatus(t.Status, tr.Status) {
			continue
		}
		if matchesSeverities(*t, tr) {
			return t
		}
	}
	return nil
}

// TriggerText resolves the message template for a dispatch: the firing
// trigger's text when set, with "%(default)s" splicing in the rule text,
// falling back to the rule text alone.
func TriggerText(rule *models.NotificationRule, trigger *models.Trigger) string {
	if trigger == nil || trigger.Text == "" {
		return rule.Text
	}
	return strings.ReplaceAll(trigger.Text, "%(default)s", rule.Text)
}

func containsSeverity(set []models.Severity, s models.Severity) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func containsStatus(set []models.Status, s models.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
