package models

import (
	"fmt"
	"time"
)

// TimeOfDay is an HH:MM wall-clock time used for daily rule windows.
type TimeOfDay struct {
	Hour   int `json:"hour" yaml:"hour"`
	Minute int `json:"minute" yaml:"minute"`
}

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return t, nil
}

// Minutes returns the time of day as minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// UnmarshalYAML accepts an "HH:MM" scalar.
func (t *TimeOfDay) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML renders the "HH:MM" scalar form.
func (t TimeOfDay) MarshalYAML() (any, error) {
	return t.String(), nil
}

// AdvancedTag is one tag-match group. The group matches an alert when all
// of All are present in the alert's tags and, if Any is non-empty, at
// least one of Any is present.
type AdvancedTag struct {
	All []string `json:"all" yaml:"all"`
	Any []string `json:"any" yaml:"any"`
}

// IsEmpty reports whether the group constrains nothing.
func (t AdvancedTag) IsEmpty() bool {
	return len(t.All) == 0 && len(t.Any) == 0
}

// Trigger is a severity/status transition condition. Empty set fields act
// as wildcards. Text, when set, overrides the rule text for notifications
// fired by this trigger.
type Trigger struct {
	FromSeverity []Severity `json:"from_severity" yaml:"from_severity"`
	ToSeverity   []Severity `json:"to_severity" yaml:"to_severity"`
	Status       []Status   `json:"status" yaml:"status"`
	Text         string     `json:"text,omitempty" yaml:"text,omitempty"`
}

// RuleScope holds the predicates shared by notification rules, escalation
// rules and blackouts. Environment is mandatory; empty optional fields
// match any alert.
type RuleScope struct {
	Environment  string        `json:"environment" yaml:"environment"`
	Service      []string      `json:"service,omitempty" yaml:"service,omitempty"`
	Resource     string        `json:"resource,omitempty" yaml:"resource,omitempty"`
	Event        string        `json:"event,omitempty" yaml:"event,omitempty"`
	Group        string        `json:"group,omitempty" yaml:"group,omitempty"`
	Customer     string        `json:"customer,omitempty" yaml:"customer,omitempty"`
	Tags         []AdvancedTag `json:"tags,omitempty" yaml:"-"`
	ExcludedTags []AdvancedTag `json:"excluded_tags,omitempty" yaml:"-"`
	Days         []string      `json:"days,omitempty" yaml:"days,omitempty"`
	StartTime    *TimeOfDay    `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime      *TimeOfDay    `json:"end_time,omitempty" yaml:"end_time,omitempty"`
}

// NotificationRule routes matching alert transitions to a notification
// channel, optionally delayed and optionally expanded through on-call
// rotations.
type NotificationRule struct {
	RuleScope `yaml:",inline"`

	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	Active     bool       `json:"active" yaml:"active"`
	Reactivate *time.Time `json:"reactivate,omitempty" yaml:"reactivate,omitempty"`
	Priority   int        `json:"priority" yaml:"priority"`
	Triggers   []Trigger  `json:"triggers,omitempty" yaml:"triggers,omitempty"`

	ChannelID string        `json:"channel_id" yaml:"channel_id"`
	Receivers []string      `json:"receivers" yaml:"receivers"`
	UserIDs   []string      `json:"user_ids,omitempty" yaml:"user_ids,omitempty"`
	GroupIDs  []string      `json:"group_ids,omitempty" yaml:"group_ids,omitempty"`
	UseOnCall bool          `json:"use_oncall" yaml:"use_oncall"`
	DelayTime time.Duration `json:"delay_time,omitempty" yaml:"-"`
	Text      string        `json:"text,omitempty" yaml:"text,omitempty"`

	User       string    `json:"user,omitempty" yaml:"user,omitempty"`
	CreateTime time.Time `json:"create_time" yaml:"create_time"`
}

// EscalationRule re-fires notification dispatch for matching alerts that
// remain unresolved, on an Every cadence.
type EscalationRule struct {
	RuleScope `yaml:",inline"`

	ID         string        `json:"id" yaml:"id"`
	Active     bool          `json:"active" yaml:"active"`
	Priority   int           `json:"priority" yaml:"priority"`
	Triggers   []Trigger     `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Every      time.Duration `json:"time" yaml:"-"`
	User       string        `json:"user,omitempty" yaml:"user,omitempty"`
	CreateTime time.Time     `json:"create_time" yaml:"create_time"`
}

// DerivePriority computes a priority from scope specificity, matching the
// historical rule ordering. Explicit non-zero priorities are kept.
func (s *RuleScope) DerivePriority(explicit int) int {
	if explicit != 0 {
		return explicit
	}
	switch {
	case s.Resource != "" && s.Event != "":
		return 6
	case s.Resource != "":
		return 2
	case len(s.Service) > 0:
		return 3
	case s.Event != "":
		return 4
	case s.Group != "":
		return 5
	case len(s.Tags) > 0:
		return 7
	default:
		return 1
	}
}
