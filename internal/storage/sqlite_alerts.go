package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

type sqliteAlertRepo struct {
	db *sql.DB
}

const alertColumns = `id, environment, resource, event, customer, severity, status,
	correlate_json, service_json, grp, value, text, tags_json, attributes_json,
	origin, type, timeout_ns, create_time, receive_time, last_receive_id,
	last_receive_time, update_time, duplicate_count, repeat, previous_severity,
	trend_indication, history_json, revision`

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.Alert) error {
	correlate, err := jsonEncode(alert.Correlate)
	if err != nil {
		return err
	}
	service, err := jsonEncode(alert.Service)
	if err != nil {
		return err
	}
	tags, err := jsonEncode(alert.Tags)
	if err != nil {
		return err
	}
	attrs, err := jsonEncode(alert.Attributes)
	if err != nil {
		return err
	}
	history, err := jsonEncode(alert.History)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (environment, resource, event, customer) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		alert.ID, alert.Environment, alert.Resource, alert.Event, alert.Customer,
		alert.Severity, alert.Status, correlate, service, nullString(alert.Group),
		alert.Value, alert.Text, tags, attrs, nullString(alert.Origin),
		nullString(alert.Type), alert.Timeout.Nanoseconds(), alert.CreateTime,
		alert.ReceiveTime, nullString(alert.LastReceiveID), alert.LastReceiveTime,
		alert.UpdateTime, alert.DuplicateCount, boolToInt(alert.Repeat),
		nullString(string(alert.PreviousSeverity)), nullString(string(alert.TrendIndication)),
		history,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyExists
	}
	alert.Revision = 1
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = ?`
	return r.scanAlert(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteAlertRepo) GetByKey(ctx context.Context, key models.AlertKey) (*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + ` FROM alerts
		WHERE environment = ? AND resource = ? AND event = ? AND customer = ?
	`
	return r.scanAlert(r.db.QueryRowContext(ctx, query,
		key.Environment, key.Resource, key.Event, key.Customer))
}

func (r *sqliteAlertRepo) FindCorrelated(ctx context.Context, env, resource, customer, event string) (*models.Alert, error) {
	// Correlate lists are short; membership is checked over the JSON
	// column after narrowing by the indexed scope columns.
	query := `
		SELECT ` + alertColumns + ` FROM alerts
		WHERE environment = ? AND resource = ? AND customer = ?
	`
	rows, err := r.db.QueryContext(ctx, query, env, resource, customer)
	if err != nil {
		return nil, fmt.Errorf("query correlated alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		alert, err := r.scanAlertRow(rows)
		if err != nil {
			return nil, err
		}
		for _, e := range alert.Correlate {
			if e == event {
				return alert, nil
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan correlated alerts: %w", err)
	}
	return nil, ErrNotFound
}

func (r *sqliteAlertRepo) Update(ctx context.Context, alert *models.Alert) error {
	correlate, err := jsonEncode(alert.Correlate)
	if err != nil {
		return err
	}
	service, err := jsonEncode(alert.Service)
	if err != nil {
		return err
	}
	tags, err := jsonEncode(alert.Tags)
	if err != nil {
		return err
	}
	attrs, err := jsonEncode(alert.Attributes)
	if err != nil {
		return err
	}
	history, err := jsonEncode(alert.History)
	if err != nil {
		return err
	}

	query := `
		UPDATE alerts SET environment = ?, resource = ?, event = ?, customer = ?,
			severity = ?, status = ?, correlate_json = ?, service_json = ?, grp = ?,
			value = ?, text = ?, tags_json = ?, attributes_json = ?, origin = ?,
			type = ?, timeout_ns = ?, create_time = ?, receive_time = ?,
			last_receive_id = ?, last_receive_time = ?, update_time = ?,
			duplicate_count = ?, repeat = ?, previous_severity = ?,
			trend_indication = ?, history_json = ?, revision = revision + 1
		WHERE id = ? AND revision = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		alert.Environment, alert.Resource, alert.Event, alert.Customer,
		alert.Severity, alert.Status, correlate, service, nullString(alert.Group),
		alert.Value, alert.Text, tags, attrs, nullString(alert.Origin),
		nullString(alert.Type), alert.Timeout.Nanoseconds(), alert.CreateTime,
		alert.ReceiveTime, nullString(alert.LastReceiveID), alert.LastReceiveTime,
		alert.UpdateTime, alert.DuplicateCount, boolToInt(alert.Repeat),
		nullString(string(alert.PreviousSeverity)), nullString(string(alert.TrendIndication)),
		history, alert.ID, alert.Revision,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrRevisionConflict
	}
	alert.Revision++
	return nil
}

func (r *sqliteAlertRepo) ListOpen(ctx context.Context) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE status = ? ORDER BY last_receive_time`
	rows, err := r.db.QueryContext(ctx, query, models.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("query open alerts: %w", err)
	}
	defer rows.Close()

	var out []*models.Alert
	for rows.Next() {
		alert, err := r.scanAlertRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, rows.Err()
}

func (r *sqliteAlertRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sqliteAlertRepo) scanAlert(row *sql.Row) (*models.Alert, error) {
	alert, err := scanAlertFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return alert, err
}

func (r *sqliteAlertRepo) scanAlertRow(rows *sql.Rows) (*models.Alert, error) {
	return scanAlertFrom(rows)
}

func scanAlertFrom(row rowScanner) (*models.Alert, error) {
	var (
		alert                         models.Alert
		correlate, service, tags      string
		attrs, history                string
		group, origin, alertType      sql.NullString
		lastReceiveID, prevSev, trend sql.NullString
		timeoutNS                     int64
		repeat                        int
	)
	err := row.Scan(
		&alert.ID, &alert.Environment, &alert.Resource, &alert.Event, &alert.Customer,
		&alert.Severity, &alert.Status, &correlate, &service, &group,
		&alert.Value, &alert.Text, &tags, &attrs, &origin,
		&alertType, &timeoutNS, &alert.CreateTime, &alert.ReceiveTime, &lastReceiveID,
		&alert.LastReceiveTime, &alert.UpdateTime, &alert.DuplicateCount, &repeat,
		&prevSev, &trend, &history, &alert.Revision,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	alert.Group = group.String
	alert.Origin = origin.String
	alert.Type = alertType.String
	alert.LastReceiveID = lastReceiveID.String
	alert.PreviousSeverity = models.Severity(prevSev.String)
	alert.TrendIndication = models.TrendIndication(trend.String)
	alert.Timeout = time.Duration(timeoutNS)
	alert.Repeat = repeat != 0

	if err := jsonDecode(correlate, &alert.Correlate); err != nil {
		return nil, fmt.Errorf("decode correlate: %w", err)
	}
	if err := jsonDecode(service, &alert.Service); err != nil {
		return nil, fmt.Errorf("decode service: %w", err)
	}
	if err := jsonDecode(tags, &alert.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := jsonDecode(attrs, &alert.Attributes); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	if err := jsonDecode(history, &alert.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return &alert, nil
}
