// Package models defines domain models for alertflow.
package models

// Severity represents the severity of an alert.
type Severity string

const (
	SeveritySecurity      Severity = "security"
	SeverityCritical      Severity = "critical"
	SeverityMajor         Severity = "major"
	SeverityMinor         Severity = "minor"
	SeverityWarning       Severity = "warning"
	SeverityIndeterminate Severity = "indeterminate"
	SeverityInformational Severity = "informational"
	SeverityNormal        Severity = "normal"
	SeverityOk            Severity = "ok"
	SeverityCleared       Severity = "cleared"
	SeverityDebug         Severity = "debug"
	SeverityTrace         Severity = "trace"
	SeverityUnknown       Severity = "unknown"
)

// DefaultSeverityMap ranks severities for trend computation. Higher rank
// means more severe. Equal ranks (normal, ok, cleared) are different labels
// for the same level.
var DefaultSeverityMap = map[Severity]int{
	SeveritySecurity:      10,
	SeverityCritical:      9,
	SeverityMajor:         8,
	SeverityMinor:         7,
	SeverityWarning:       6,
	SeverityIndeterminate: 5,
	SeverityInformational: 4,
	SeverityNormal:        3,
	SeverityOk:            3,
	SeverityCleared:       3,
	SeverityDebug:         2,
	SeverityTrace:         1,
	SeverityUnknown:       0,
}

// Status represents the lifecycle status of an alert.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAssign   Status = "assign"
	StatusAck      Status = "ack"
	StatusUnack    Status = "unack"
	StatusShelved  Status = "shelved"
	StatusBlackout Status = "blackout"
	StatusClosed   Status = "closed"
	StatusExpired  Status = "expired"
	StatusUnknown  Status = "unknown"
)

// IsResolved reports whether the status terminates the notification
// lifecycle of an alert. Pending delayed notifications and escalation
// re-fires are cancelled once an alert reaches a resolved status.
func (s Status) IsResolved() bool {
	return s == StatusClosed || s == StatusExpired
}

// TrendIndication describes the direction of the last severity transition.
type TrendIndication string

const (
	TrendMoreSevere TrendIndication = "moreSevere"
	TrendLessSevere TrendIndication = "lessSevere"
	TrendNoChange   TrendIndication = "noChange"
)

// ChangeType classifies a history entry.
type ChangeType string

const (
	ChangeNew      ChangeType = "new"
	ChangeSeverity ChangeType = "severity"
	ChangeStatus   ChangeType = "status"
	ChangeValue    ChangeType = "value"
	ChangeAction   ChangeType = "action"
)
