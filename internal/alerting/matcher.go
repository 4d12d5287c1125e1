package alerting

import (
	"sort"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// The matcher is pure: scope, tag and time-window predicates over
// already-fetched rule sets. Severity and status are the trigger
// evaluator's job.

// ScopeMatches reports whether the alert falls inside the rule scope.
// Empty optional fields match any alert.
func ScopeMatches(s *models.RuleScope, alert *models.Alert) bool {
	if s.Environment != alert.Environment {
		return false
	}
	if len(s.Service) > 0 && !intersects(s.Service, alert.Service) {
		return false
	}
	if s.Resource != "" && s.Resource != alert.Resource {
		return false
	}
	if s.Event != "" && s.Event != alert.Event {
		return false
	}
	if s.Group != "" && s.Group != alert.Group {
		return false
	}
	if s.Customer != "" && s.Customer != alert.Customer {
		return false
	}
	if !TagsMatch(s.Tags, alert.Tags) {
		return false
	}
	if ExcludedTagsVeto(s.ExcludedTags, alert.Tags) {
		return false
	}
	return true
}

// TagsMatch evaluates advanced tag groups: at least one group must have
// all of All present and, when Any is non-empty, at least one of Any
// present. An empty group list constrains nothing.
func TagsMatch(groups []models.AdvancedTag, tags []string) bool {
	if len(groups) == 0 {
		return true
	}
	for _, g := range groups {
		if g.IsEmpty() {
			return true
		}
		if !containsAll(tags, g.All) {
			continue
		}
		if len(g.Any) > 0 && !intersects(g.Any, tags) {
			continue
		}
		return true
	}
	return false
}

// ExcludedTagsVeto reports whether any excluded-tag group fully matches
// the alert tags. A group with both sets empty never vetoes.
func ExcludedTagsVeto(groups []models.AdvancedTag, tags []string) bool {
	for _, g := range groups {
		if g.IsEmpty() {
			continue
		}
		switch {
		case len(g.All) == 0:
			if intersects(g.Any, tags) {
				return true
			}
		case len(g.Any) == 0:
			if containsAll(tags, g.All) {
				return true
			}
		default:
			if containsAll(tags, g.All) && intersects(g.Any, tags) {
				return true
			}
		}
	}
	return false
}

// WindowContains reports whether now falls inside the rule's weekday set
// and time-of-day window. The window may wrap midnight.
func WindowContains(s *models.RuleScope, now time.Time) bool {
	if len(s.Days) > 0 && !containsDay(s.Days, now.Weekday()) {
		return false
	}
	if s.StartTime == nil || s.EndTime == nil {
		return true
	}
	minute := now.Hour()*60 + now.Minute()
	start, end := s.StartTime.Minutes(), s.EndTime.Minutes()
	if start <= end {
		return minute >= start && minute < end
	}
	// Wraps midnight, e.g. 22:00 to 06:00.
	return minute >= start || minute < end
}

// ruleUsable reports whether the rule is active, counting inactive rules
// whose reactivate timestamp has already passed.
func ruleUsable(active bool, reactivate *time.Time, now time.Time) bool {
	if active {
		return true
	}
	return reactivate != nil && !reactivate.After(now)
}

// MatchNotificationRules filters rules down to those whose scope, tags and
// time window accept the alert at now, ordered by priority ascending then
// creation time ascending.
func MatchNotificationRules(rules []*models.NotificationRule, alert *models.Alert, now time.Time) []*models.NotificationRule {
	var out []*models.NotificationRule
	for _, r := range rules {
		if !ruleUsable(r.Active, r.Reactivate, now) {
			continue
		}
		if !ScopeMatches(&r.RuleScope, alert) {
			continue
		}
		if !WindowContains(&r.RuleScope, now) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreateTime.Before(out[j].CreateTime)
	})
	return out
}

// MatchEscalationRules filters escalation rules the same way.
func MatchEscalationRules(rules []*models.EscalationRule, alert *models.Alert, now time.Time) []*models.EscalationRule {
	var out []*models.EscalationRule
	for _, r := range rules {
		if !r.Active {
			continue
		}
		if !ScopeMatches(&r.RuleScope, alert) {
			continue
		}
		if !WindowContains(&r.RuleScope, now) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreateTime.Before(out[j].CreateTime)
	})
	return out
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func containsAll(haystack, needles []string) bool {
	for _, n := range needles {
		found := false
		for _, h := range haystack {
			if h == n {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsDay(days []string, day time.Weekday) bool {
	short := day.String()[:3]
	for _, d := range days {
		if d == short || d == day.String() {
			return true
		}
	}
	return false
}
