package alerting

import (
	"context"
	"sort"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// OnCallActiveAt reports whether the rotation covers the given instant.
func OnCallActiveAt(oc *models.OnCall, now time.Time) bool {
	switch oc.RepeatType {
	case models.RepeatList:
		if len(oc.RepeatDays) > 0 && !containsDay(oc.RepeatDays, now.Weekday()) {
			return false
		}
		if len(oc.RepeatWeeks) > 0 {
			_, week := now.ISOWeek()
			if !containsInt(oc.RepeatWeeks, week) {
				return false
			}
		}
		if len(oc.RepeatMonths) > 0 && !containsMonth(oc.RepeatMonths, now.Month()) {
			return false
		}
	default:
		if oc.StartDate != nil && now.Before(*oc.StartDate) {
			return false
		}
		if oc.EndDate != nil && !now.Before(*oc.EndDate) {
			return false
		}
	}
	return timeOfDayCovers(oc.StartTime, oc.EndTime, now)
}

// timeOfDayCovers checks the daily window, wrapping midnight when the end
// precedes the start.
func timeOfDayCovers(start, end *models.TimeOfDay, now time.Time) bool {
	if start == nil || end == nil {
		return true
	}
	minute := now.Hour()*60 + now.Minute()
	s, e := start.Minutes(), end.Minutes()
	if s <= e {
		return minute >= s && minute < e
	}
	return minute >= s || minute < e
}

// resolveRecipients produces the final recipient set for a rule: static
// receivers, direct users, expanded groups, and when the rule opts in, the
// users of every rotation covering now. Returns ErrNoOnCallCoverage when
// an on-call rule resolves to nobody.
func (e *Engine) resolveRecipients(ctx context.Context, rule *models.NotificationRule, customer string, now time.Time) ([]string, error) {
	seen := make(map[string]bool)
	var recipients []string
	add := func(r string) {
		if r != "" && !seen[r] {
			seen[r] = true
			recipients = append(recipients, r)
		}
	}

	for _, r := range rule.Receivers {
		add(r)
	}
	for _, u := range rule.UserIDs {
		add(u)
	}
	for _, g := range rule.GroupIDs {
		members, err := e.store.Groups().Members(ctx, g)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			add(m)
		}
	}

	if rule.UseOnCall {
		oncalls, err := e.store.OnCalls().List(ctx, customer)
		if err != nil {
			return nil, err
		}
		for _, oc := range oncalls {
			if !OnCallActiveAt(oc, now) {
				continue
			}
			for _, u := range oc.UserIDs {
				add(u)
			}
			for _, g := range oc.GroupIDs {
				members, err := e.store.Groups().Members(ctx, g)
				if err != nil {
					return nil, err
				}
				for _, m := range members {
					add(m)
				}
			}
		}
	}

	if len(recipients) == 0 {
		return nil, ErrNoOnCallCoverage
	}
	sort.Strings(recipients)
	return recipients, nil
}

func containsInt(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

func containsMonth(months []string, m time.Month) bool {
	short := m.String()[:3]
	for _, v := range months {
		if v == short || v == m.String() {
			return true
		}
	}
	return false
}
