package models

import "time"

// Blackout is a scoped, time-bounded suppression window. An alert matching
// the scope while the window is active is still recorded and deduplicated,
// but produces no notifications.
type Blackout struct {
	ID          string        `json:"id" yaml:"id"`
	Environment string        `json:"environment" yaml:"environment"`
	Service     []string      `json:"service,omitempty" yaml:"service,omitempty"`
	Resource    string        `json:"resource,omitempty" yaml:"resource,omitempty"`
	Event       string        `json:"event,omitempty" yaml:"event,omitempty"`
	Group       string        `json:"group,omitempty" yaml:"group,omitempty"`
	Tags        []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Origin      string        `json:"origin,omitempty" yaml:"origin,omitempty"`
	Customer    string        `json:"customer,omitempty" yaml:"customer,omitempty"`
	StartTime   time.Time     `json:"start_time" yaml:"start_time"`
	EndTime     time.Time     `json:"end_time" yaml:"end_time"`
	Duration    time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	User        string        `json:"user,omitempty" yaml:"user,omitempty"`
	Text        string        `json:"text,omitempty" yaml:"text,omitempty"`
	CreateTime  time.Time     `json:"create_time" yaml:"create_time"`
}

// Active reports whether the window covers the given instant.
func (b *Blackout) Active(now time.Time) bool {
	return !b.StartTime.After(now) && b.EndTime.After(now)
}
