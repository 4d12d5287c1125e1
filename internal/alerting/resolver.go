package alerting

import (
	"context"
	"errors"

	"github.com/good-yellow-bee/alertflow/internal/models"
	"github.com/good-yellow-bee/alertflow/internal/storage"
)

// resolveExisting finds the live alert a report maps onto, or nil when the
// report opens a new alert. Exact identity key wins; failing that, a
// correlated alert sharing environment, resource and customer whose
// correlate list names the report's event. No side effects.
func (e *Engine) resolveExisting(ctx context.Context, report *models.Alert) (*models.Alert, error) {
	alerts := e.store.Alerts()

	existing, err := alerts.GetByKey(ctx, report.Key())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	correlated, err := alerts.FindCorrelated(ctx, report.Environment, report.Resource, report.Customer, report.Event)
	if err == nil {
		return correlated, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return nil, nil
}

// validateReport rejects reports missing required scope fields.
func validateReport(report *models.Alert) error {
	switch {
	case report.Environment == "":
		return &ValidationError{Field: "environment", Reason: "is required"}
	case report.Resource == "":
		return &ValidationError{Field: "resource", Reason: "is required"}
	case report.Event == "":
		return &ValidationError{Field: "event", Reason: "is required"}
	}
	return nil
}
