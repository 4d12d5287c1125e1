package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

type sqliteDelayRepo struct {
	db *sql.DB
}

func (r *sqliteDelayRepo) Upsert(ctx context.Context, d *models.DelayedNotification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delayed_notifications (id, alert_id, rule_id, fire_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (alert_id, rule_id) DO UPDATE SET fire_at = excluded.fire_at
	`, d.ID, d.AlertID, d.RuleID, d.FireAt)
	if err != nil {
		return fmt.Errorf("upsert delayed notification: %w", err)
	}
	return nil
}

func (r *sqliteDelayRepo) ListDue(ctx context.Context, now time.Time) ([]*models.DelayedNotification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, alert_id, rule_id, fire_at FROM delayed_notifications
		WHERE fire_at <= ? ORDER BY fire_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("query due delays: %w", err)
	}
	defer rows.Close()

	var out []*models.DelayedNotification
	for rows.Next() {
		var d models.DelayedNotification
		if err := rows.Scan(&d.ID, &d.AlertID, &d.RuleID, &d.FireAt); err != nil {
			return nil, fmt.Errorf("scan delayed notification: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Claim removes the marker and reports whether this caller deleted it.
// Concurrent sweeps racing on the same delay see at most one true.
func (r *sqliteDelayRepo) Claim(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM delayed_notifications WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("claim delayed notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *sqliteDelayRepo) DeleteByAlert(ctx context.Context, alertID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM delayed_notifications WHERE alert_id = ?", alertID)
	if err != nil {
		return fmt.Errorf("delete delays for alert: %w", err)
	}
	return nil
}

type sqliteHistoryRepo struct {
	db *sql.DB
}

func (r *sqliteHistoryRepo) Create(ctx context.Context, h *models.NotificationHistory) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_history (id, sent, message, channel_id, rule_id,
			alert_id, sender, receiver, error, sent_time, confirmed, confirmed_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		h.ID, boolToInt(h.Sent), nullString(h.Message), h.ChannelID, h.RuleID,
		h.AlertID, nullString(h.Sender), nullString(h.Receiver),
		nullString(h.Error), h.SentTime, boolToInt(h.Confirmed),
		nullTime(h.ConfirmedTime),
	)
	if err != nil {
		return fmt.Errorf("insert notification history: %w", err)
	}
	return nil
}

func (r *sqliteHistoryRepo) List(ctx context.Context, limit, offset int) ([]*models.NotificationHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sent, message, channel_id, rule_id, alert_id, sender,
			receiver, error, sent_time, confirmed, confirmed_time
		FROM notification_history
		ORDER BY sent_time DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query notification history: %w", err)
	}
	defer rows.Close()

	var out []*models.NotificationHistory
	for rows.Next() {
		var (
			h                 models.NotificationHistory
			message, sender   sql.NullString
			receiver, sendErr sql.NullString
			sent, confirmed   int
			confirmedTime     sql.NullTime
		)
		err := rows.Scan(
			&h.ID, &sent, &message, &h.ChannelID, &h.RuleID, &h.AlertID,
			&sender, &receiver, &sendErr, &h.SentTime, &confirmed, &confirmedTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification history: %w", err)
		}
		h.Sent = sent != 0
		h.Message = message.String
		h.Sender = sender.String
		h.Receiver = receiver.String
		h.Error = sendErr.String
		h.Confirmed = confirmed != 0
		h.ConfirmedTime = timePtr(confirmedTime)
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (r *sqliteHistoryRepo) Confirm(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notification_history SET confirmed = 1, confirmed_time = ?
		WHERE id = ?
	`, at, id)
	if err != nil {
		return fmt.Errorf("confirm notification: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
