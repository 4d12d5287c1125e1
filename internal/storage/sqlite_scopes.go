package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

type sqliteBlackoutRepo struct {
	db *sql.DB
}

const blackoutColumns = `id, environment, service_json, resource, event, grp,
	tags_json, origin, customer, start_time, end_time, duration_ns, user, text, create_time`

func (r *sqliteBlackoutRepo) Create(ctx context.Context, b *models.Blackout) error {
	service, err := jsonEncode(b.Service)
	if err != nil {
		return err
	}
	tags, err := jsonEncode(b.Tags)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO blackouts (`+blackoutColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID, b.Environment, service, nullString(b.Resource), nullString(b.Event),
		nullString(b.Group), tags, nullString(b.Origin), nullString(b.Customer),
		b.StartTime, b.EndTime, b.Duration.Nanoseconds(), nullString(b.User),
		nullString(b.Text), b.CreateTime,
	)
	if err != nil {
		return fmt.Errorf("insert blackout: %w", err)
	}
	return nil
}

func (r *sqliteBlackoutRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM blackouts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete blackout: %w", err)
	}
	return nil
}

func (r *sqliteBlackoutRepo) ListByEnvironment(ctx context.Context, env string) ([]*models.Blackout, error) {
	query := `SELECT ` + blackoutColumns + ` FROM blackouts`
	var args []any
	if env != "" {
		query += ` WHERE environment = ?`
		args = append(args, env)
	}
	query += ` ORDER BY start_time`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blackouts: %w", err)
	}
	defer rows.Close()

	var out []*models.Blackout
	for rows.Next() {
		var (
			b                      models.Blackout
			resource, event, group sql.NullString
			origin, customer       sql.NullString
			user, text             sql.NullString
			service, tags          string
			durationNS             int64
		)
		err := rows.Scan(
			&b.ID, &b.Environment, &service, &resource, &event, &group, &tags,
			&origin, &customer, &b.StartTime, &b.EndTime, &durationNS,
			&user, &text, &b.CreateTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan blackout: %w", err)
		}
		b.Resource = resource.String
		b.Event = event.String
		b.Group = group.String
		b.Origin = origin.String
		b.Customer = customer.String
		b.User = user.String
		b.Text = text.String
		b.Duration = time.Duration(durationNS)
		if err := jsonDecode(service, &b.Service); err != nil {
			return nil, fmt.Errorf("decode service: %w", err)
		}
		if err := jsonDecode(tags, &b.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

type sqliteOnCallRepo struct {
	db *sql.DB
}

const oncallColumns = `id, user_ids_json, group_ids_json, start_date, end_date,
	start_time, end_time, repeat_type, repeat_days_json, repeat_weeks_json,
	repeat_months_json, customer, user, create_time`

func (r *sqliteOnCallRepo) Create(ctx context.Context, oc *models.OnCall) error {
	userIDs, err := jsonEncode(oc.UserIDs)
	if err != nil {
		return err
	}
	groupIDs, err := jsonEncode(oc.GroupIDs)
	if err != nil {
		return err
	}
	days, err := jsonEncode(oc.RepeatDays)
	if err != nil {
		return err
	}
	weeks, err := jsonEncode(oc.RepeatWeeks)
	if err != nil {
		return err
	}
	months, err := jsonEncode(oc.RepeatMonths)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO on_calls (`+oncallColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		oc.ID, userIDs, groupIDs, nullTime(oc.StartDate), nullTime(oc.EndDate),
		nullTimeOfDay(oc.StartTime), nullTimeOfDay(oc.EndTime),
		nullString(string(oc.RepeatType)), days, weeks, months,
		nullString(oc.Customer), nullString(oc.User), oc.CreateTime,
	)
	if err != nil {
		return fmt.Errorf("insert on-call: %w", err)
	}
	return nil
}

func (r *sqliteOnCallRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM on_calls WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete on-call: %w", err)
	}
	return nil
}

func (r *sqliteOnCallRepo) List(ctx context.Context, customer string) ([]*models.OnCall, error) {
	query := `SELECT ` + oncallColumns + ` FROM on_calls
		WHERE customer IS NULL OR customer = '' OR customer = ?
		ORDER BY create_time`

	rows, err := r.db.QueryContext(ctx, query, customer)
	if err != nil {
		return nil, fmt.Errorf("query on-calls: %w", err)
	}
	defer rows.Close()

	var out []*models.OnCall
	for rows.Next() {
		var (
			oc                         models.OnCall
			startDate, endDate         sql.NullTime
			startTime, endTime         sql.NullString
			repeatType, customer, user sql.NullString
			userIDs, groupIDs          string
			days, weeks, months        string
		)
		err := rows.Scan(
			&oc.ID, &userIDs, &groupIDs, &startDate, &endDate, &startTime,
			&endTime, &repeatType, &days, &weeks, &months, &customer, &user,
			&oc.CreateTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan on-call: %w", err)
		}
		oc.StartDate = timePtr(startDate)
		oc.EndDate = timePtr(endDate)
		oc.RepeatType = models.RepeatType(repeatType.String)
		oc.Customer = customer.String
		oc.User = user.String
		if oc.StartTime, err = timeOfDayPtr(startTime); err != nil {
			return nil, err
		}
		if oc.EndTime, err = timeOfDayPtr(endTime); err != nil {
			return nil, err
		}
		if err := jsonDecode(userIDs, &oc.UserIDs); err != nil {
			return nil, fmt.Errorf("decode user ids: %w", err)
		}
		if err := jsonDecode(groupIDs, &oc.GroupIDs); err != nil {
			return nil, fmt.Errorf("decode group ids: %w", err)
		}
		if err := jsonDecode(days, &oc.RepeatDays); err != nil {
			return nil, fmt.Errorf("decode repeat days: %w", err)
		}
		if err := jsonDecode(weeks, &oc.RepeatWeeks); err != nil {
			return nil, fmt.Errorf("decode repeat weeks: %w", err)
		}
		if err := jsonDecode(months, &oc.RepeatMonths); err != nil {
			return nil, fmt.Errorf("decode repeat months: %w", err)
		}
		out = append(out, &oc)
	}
	return out, rows.Err()
}

type sqliteGroupRepo struct {
	db *sql.DB
}

func (r *sqliteGroupRepo) SetMembers(ctx context.Context, groupID string, userIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM group_members WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	for _, userID := range userIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, user_id) VALUES (?, ?)",
			groupID, userID)
		if err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
	}
	return tx.Commit()
}

func (r *sqliteGroupRepo) Members(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id", groupID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

type sqliteChannelRepo struct {
	db *sql.DB
}

func (r *sqliteChannelRepo) Create(ctx context.Context, c *models.Channel) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO channels (id, name, type, sender, host) VALUES (?, ?, ?, ?, ?)
	`, c.ID, nullString(c.Name), c.Type, nullString(c.Sender), nullString(c.Host))
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

func (r *sqliteChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	var (
		c                  models.Channel
		name, sender, host sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, type, sender, host FROM channels WHERE id = ?", id,
	).Scan(&c.ID, &name, &c.Type, &sender, &host)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan channel: %w", err)
	}
	c.Name = name.String
	c.Sender = sender.String
	c.Host = host.String
	return &c, nil
}

func (r *sqliteChannelRepo) List(ctx context.Context) ([]*models.Channel, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, type, sender, host FROM channels ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []*models.Channel
	for rows.Next() {
		var (
			c                  models.Channel
			name, sender, host sql.NullString
		)
		if err := rows.Scan(&c.ID, &name, &c.Type, &sender, &host); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		c.Name = name.String
		c.Sender = sender.String
		c.Host = host.String
		out = append(out, &c)
	}
	return out, rows.Err()
}
