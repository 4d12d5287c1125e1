package models

import "time"

// Channel is a configured notification transport endpoint. Type selects
// the sender adapter; Sender is the from-address or caller id.
type Channel struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Type   string `json:"type" yaml:"type"`
	Sender string `json:"sender,omitempty" yaml:"sender,omitempty"`
	Host   string `json:"host,omitempty" yaml:"host,omitempty"`
}

// DelayedNotification is a pending-dispatch marker for a rule whose delay
// has not yet elapsed. It is consumed once the sweep fires it or the alert
// resolves.
type DelayedNotification struct {
	ID      string    `json:"id"`
	AlertID string    `json:"alert_id"`
	RuleID  string    `json:"notification_rule_id"`
	FireAt  time.Time `json:"delay_time"`
}

// NotificationHistory records the outcome of one send attempt.
type NotificationHistory struct {
	ID            string     `json:"id"`
	Sent          bool       `json:"sent"`
	Message       string     `json:"message"`
	ChannelID     string     `json:"channel"`
	RuleID        string     `json:"rule"`
	AlertID       string     `json:"alert"`
	Sender        string     `json:"sender,omitempty"`
	Receiver      string     `json:"receiver"`
	Error         string     `json:"error,omitempty"`
	SentTime      time.Time  `json:"sent_time"`
	Confirmed     bool       `json:"confirmed,omitempty"`
	ConfirmedTime *time.Time `json:"confirmed_time,omitempty"`
}
