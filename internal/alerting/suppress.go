package alerting

import (
	"context"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// Suppressed reports whether any blackout window covers the alert's scope
// at now. Suppression vetoes notification only; the alert itself is still
// recorded and deduplicated. It is evaluated per dispatch attempt, never
// cached on the alert, because windows expire independently of alert
// state.
func Suppressed(alert *models.Alert, blackouts []*models.Blackout, now time.Time) bool {
	for _, b := range blackouts {
		if !b.Active(now) {
			continue
		}
		if blackoutCovers(b, alert) {
			return true
		}
	}
	return false
}

func blackoutCovers(b *models.Blackout, alert *models.Alert) bool {
	if b.Environment != alert.Environment {
		return false
	}
	if len(b.Service) > 0 && !intersects(b.Service, alert.Service) {
		return false
	}
	if b.Resource != "" && b.Resource != alert.Resource {
		return false
	}
	if b.Event != "" && b.Event != alert.Event {
		return false
	}
	if b.Group != "" && b.Group != alert.Group {
		return false
	}
	if b.Customer != "" && b.Customer != alert.Customer {
		return false
	}
	if len(b.Tags) > 0 && !containsAll(alert.Tags, b.Tags) {
		return false
	}
	return true
}

// suppressed fetches the environment's blackouts and applies Suppressed.
func (e *Engine) suppressed(ctx context.Context, alert *models.Alert, now time.Time) (bool, error) {
	blackouts, err := e.store.Blackouts().ListByEnvironment(ctx, alert.Environment)
	if err != nil {
		return false, err
	}
	return Suppressed(alert, blackouts, now), nil
}
