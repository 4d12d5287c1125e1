package alerting

import (
	"errors"
	"fmt"
)

// ErrNoOnCallCoverage is returned by recipient resolution when a rule
// relies on on-call rotations and no rotation covers the current instant.
// It is a warning-level outcome: dispatch is skipped and recorded, never
// fatal to the ingestion path.
var ErrNoOnCallCoverage = errors.New("no on-call coverage")

// ValidationError reports a malformed alert report. The alert is not
// created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid alert: %s %s", e.Field, e.Reason)
}

// ConflictError reports that concurrent ingests raced on the same identity
// key past the bounded retry count.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent update conflict on alert key %s", e.Key)
}
