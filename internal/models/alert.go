package models

import (
	"time"
)

// AlertKey is the dedup/correlation identity of an alert. No two live
// alerts may share the same key.
type AlertKey struct {
	Environment string
	Resource    string
	Event       string
	Customer    string
}

// Alert is the mutable entity representing one distinct fault condition.
type Alert struct {
	ID          string         `json:"id"`
	Resource    string         `json:"resource"`
	Event       string         `json:"event"`
	Environment string         `json:"environment"`
	Severity    Severity       `json:"severity"`
	Correlate   []string       `json:"correlate,omitempty"`
	Status      Status         `json:"status"`
	Service     []string       `json:"service,omitempty"`
	Group       string         `json:"group,omitempty"`
	Value       string         `json:"value,omitempty"`
	Text        string         `json:"text,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	Origin      string         `json:"origin,omitempty"`
	Type        string         `json:"type,omitempty"`
	Customer    string         `json:"customer,omitempty"`
	Timeout     time.Duration  `json:"timeout,omitempty"`

	CreateTime       time.Time       `json:"create_time"`
	ReceiveTime      time.Time       `json:"receive_time"`
	LastReceiveID    string          `json:"last_receive_id,omitempty"`
	LastReceiveTime  time.Time       `json:"last_receive_time"`
	UpdateTime       time.Time       `json:"update_time"`
	DuplicateCount   int             `json:"duplicate_count"`
	Repeat           bool            `json:"repeat"`
	PreviousSeverity Severity        `json:"previous_severity,omitempty"`
	TrendIndication  TrendIndication `json:"trend_indication,omitempty"`
	History          []HistoryEntry  `json:"history,omitempty"`

	// Revision is the optimistic-concurrency token used by the storage
	// collaborator for key-conditioned updates. Zero for unsaved alerts.
	Revision int64 `json:"-"`
}

// Key returns the identity key of the alert.
func (a *Alert) Key() AlertKey {
	return AlertKey{
		Environment: a.Environment,
		Resource:    a.Resource,
		Event:       a.Event,
		Customer:    a.Customer,
	}
}

// HasTag reports whether the alert carries the given tag.
func (a *Alert) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MergeTags adds the given tags to the alert, keeping the set distinct.
func (a *Alert) MergeTags(tags []string) {
	for _, t := range tags {
		if !a.HasTag(t) {
			a.Tags = append(a.Tags, t)
		}
	}
}

// AppendHistory prepends a history entry, trimming the sequence to limit.
// The most recent entry is always first. A limit of zero keeps everything.
func (a *Alert) AppendHistory(h HistoryEntry, limit int) {
	a.History = append([]HistoryEntry{h}, a.History...)
	if limit > 0 && len(a.History) > limit {
		a.History = a.History[:limit]
	}
}

// HistoryEntry is an immutable record appended on every observed change.
type HistoryEntry struct {
	ID         string        `json:"id"`
	Event      string        `json:"event"`
	Severity   Severity      `json:"severity,omitempty"`
	Status     Status        `json:"status,omitempty"`
	Value      string        `json:"value,omitempty"`
	Text       string        `json:"text,omitempty"`
	Type       ChangeType    `json:"type"`
	UpdateTime time.Time     `json:"update_time"`
	User       string        `json:"user,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}
