package models

import "time"

// RepeatType selects how an on-call rotation recurs.
type RepeatType string

const (
	// RepeatNone covers a single start/end date range.
	RepeatNone RepeatType = "none"
	// RepeatList recurs on listed weekdays, weeks of the year and months.
	RepeatList RepeatType = "list"
)

// OnCall is a rotation entry describing who is on duty and when. At least
// one of UserIDs/GroupIDs must be non-empty.
type OnCall struct {
	ID           string     `json:"id" yaml:"id"`
	UserIDs      []string   `json:"user_ids" yaml:"user_ids"`
	GroupIDs     []string   `json:"group_ids,omitempty" yaml:"group_ids,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	StartTime    *TimeOfDay `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime      *TimeOfDay `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	RepeatType   RepeatType `json:"repeat_type,omitempty" yaml:"repeat_type,omitempty"`
	RepeatDays   []string   `json:"repeat_days,omitempty" yaml:"repeat_days,omitempty"`
	RepeatWeeks  []int      `json:"repeat_weeks,omitempty" yaml:"repeat_weeks,omitempty"`
	RepeatMonths []string   `json:"repeat_months,omitempty" yaml:"repeat_months,omitempty"`
	Customer     string     `json:"customer,omitempty" yaml:"customer,omitempty"`
	User         string     `json:"user,omitempty" yaml:"user,omitempty"`
	CreateTime   time.Time  `json:"create_time" yaml:"create_time"`
}
