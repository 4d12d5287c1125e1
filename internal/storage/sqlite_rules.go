package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

type sqliteRuleRepo struct {
	db *sql.DB
}

const ruleColumns = `id, name, active, reactivate, priority, environment, service_json,
	resource, event, grp, customer, tags_json, excluded_tags_json, days_json,
	start_time, end_time, triggers_json, channel_id, receivers_json, user_ids_json,
	group_ids_json, use_oncall, delay_ns, text, user, create_time`

func encodeScope(s *models.RuleScope) (service, tags, excluded, days string, err error) {
	if service, err = jsonEncode(s.Service); err != nil {
		return
	}
	if tags, err = jsonEncode(s.Tags); err != nil {
		return
	}
	if excluded, err = jsonEncode(s.ExcludedTags); err != nil {
		return
	}
	days, err = jsonEncode(s.Days)
	return
}

func (r *sqliteRuleRepo) Create(ctx context.Context, rule *models.NotificationRule) error {
	return r.write(ctx, rule, `
		INSERT INTO notification_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, false)
}

func (r *sqliteRuleRepo) Update(ctx context.Context, rule *models.NotificationRule) error {
	return r.write(ctx, rule, `
		UPDATE notification_rules SET id = ?, name = ?, active = ?, reactivate = ?,
			priority = ?, environment = ?, service_json = ?, resource = ?, event = ?,
			grp = ?, customer = ?, tags_json = ?, excluded_tags_json = ?, days_json = ?,
			start_time = ?, end_time = ?, triggers_json = ?, channel_id = ?,
			receivers_json = ?, user_ids_json = ?, group_ids_json = ?, use_oncall = ?,
			delay_ns = ?, text = ?, user = ?, create_time = ?
		WHERE id = ?
	`, true)
}

func (r *sqliteRuleRepo) write(ctx context.Context, rule *models.NotificationRule, query string, update bool) error {
	service, tags, excluded, days, err := encodeScope(&rule.RuleScope)
	if err != nil {
		return err
	}
	triggers, err := jsonEncode(rule.Triggers)
	if err != nil {
		return err
	}
	receivers, err := jsonEncode(rule.Receivers)
	if err != nil {
		return err
	}
	userIDs, err := jsonEncode(rule.UserIDs)
	if err != nil {
		return err
	}
	groupIDs, err := jsonEncode(rule.GroupIDs)
	if err != nil {
		return err
	}

	args := []any{
		rule.ID, nullString(rule.Name), boolToInt(rule.Active), nullTime(rule.Reactivate),
		rule.Priority, rule.Environment, service, nullString(rule.Resource),
		nullString(rule.Event), nullString(rule.Group), nullString(rule.Customer),
		tags, excluded, days, nullTimeOfDay(rule.StartTime), nullTimeOfDay(rule.EndTime),
		triggers, rule.ChannelID, receivers, userIDs, groupIDs,
		boolToInt(rule.UseOnCall), rule.DelayTime.Nanoseconds(), nullString(rule.Text),
		nullString(rule.User), rule.CreateTime,
	}
	if update {
		args = append(args, rule.ID)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("write notification rule: %w", err)
	}
	if update {
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (r *sqliteRuleRepo) GetByID(ctx context.Context, id string) (*models.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules WHERE id = ?`
	rule, err := scanNotificationRule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

func (r *sqliteRuleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM notification_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete notification rule: %w", err)
	}
	return nil
}

func (r *sqliteRuleRepo) ListByEnvironment(ctx context.Context, env string) ([]*models.NotificationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM notification_rules`
	var args []any
	if env != "" {
		query += ` WHERE environment = ?`
		args = append(args, env)
	}
	query += ` ORDER BY priority, create_time`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notification rules: %w", err)
	}
	defer rows.Close()

	var out []*models.NotificationRule
	for rows.Next() {
		rule, err := scanNotificationRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *sqliteRuleRepo) Reactivate(ctx context.Context, now time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notification_rules SET active = 1, reactivate = NULL
		WHERE active = 0 AND reactivate IS NOT NULL AND reactivate <= ?
	`, now)
	if err != nil {
		return 0, fmt.Errorf("reactivate notification rules: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

func scanNotificationRule(row rowScanner) (*models.NotificationRule, error) {
	var (
		rule                          models.NotificationRule
		name, resource, event, group  sql.NullString
		customer, text, user          sql.NullString
		startTime, endTime            sql.NullString
		reactivate                    sql.NullTime
		service, tags, excluded, days string
		triggers, receivers           string
		userIDs, groupIDs             string
		active, useOnCall             int
		delayNS                       int64
	)
	err := row.Scan(
		&rule.ID, &name, &active, &reactivate, &rule.Priority, &rule.Environment,
		&service, &resource, &event, &group, &customer, &tags, &excluded, &days,
		&startTime, &endTime, &triggers, &rule.ChannelID, &receivers, &userIDs,
		&groupIDs, &useOnCall, &delayNS, &text, &user, &rule.CreateTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan notification rule: %w", err)
	}

	rule.Name = name.String
	rule.Active = active != 0
	rule.Reactivate = timePtr(reactivate)
	rule.Resource = resource.String
	rule.Event = event.String
	rule.Group = group.String
	rule.Customer = customer.String
	rule.Text = text.String
	rule.User = user.String
	rule.UseOnCall = useOnCall != 0
	rule.DelayTime = time.Duration(delayNS)

	if rule.StartTime, err = timeOfDayPtr(startTime); err != nil {
		return nil, err
	}
	if rule.EndTime, err = timeOfDayPtr(endTime); err != nil {
		return nil, err
	}
	if err := jsonDecode(service, &rule.Service); err != nil {
		return nil, fmt.Errorf("decode service: %w", err)
	}
	if err := jsonDecode(tags, &rule.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := jsonDecode(excluded, &rule.ExcludedTags); err != nil {
		return nil, fmt.Errorf("decode excluded tags: %w", err)
	}
	if err := jsonDecode(days, &rule.Days); err != nil {
		return nil, fmt.Errorf("decode days: %w", err)
	}
	if err := jsonDecode(triggers, &rule.Triggers); err != nil {
		return nil, fmt.Errorf("decode triggers: %w", err)
	}
	if err := jsonDecode(receivers, &rule.Receivers); err != nil {
		return nil, fmt.Errorf("decode receivers: %w", err)
	}
	if err := jsonDecode(userIDs, &rule.UserIDs); err != nil {
		return nil, fmt.Errorf("decode user ids: %w", err)
	}
	if err := jsonDecode(groupIDs, &rule.GroupIDs); err != nil {
		return nil, fmt.Errorf("decode group ids: %w", err)
	}
	return &rule, nil
}

type sqliteEscalationRepo struct {
	db *sql.DB
}

const escalationColumns = `id, active, priority, environment, service_json, resource,
	event, grp, customer, tags_json, excluded_tags_json, days_json, start_time,
	end_time, triggers_json, every_ns, user, create_time`

func (r *sqliteEscalationRepo) Create(ctx context.Context, rule *models.EscalationRule) error {
	return r.write(ctx, rule, `
		INSERT INTO escalation_rules (`+escalationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, false)
}

func (r *sqliteEscalationRepo) Update(ctx context.Context, rule *models.EscalationRule) error {
	return r.write(ctx, rule, `
		UPDATE escalation_rules SET id = ?, active = ?, priority = ?, environment = ?,
			service_json = ?, resource = ?, event = ?, grp = ?, customer = ?,
			tags_json = ?, excluded_tags_json = ?, days_json = ?, start_time = ?,
			end_time = ?, triggers_json = ?, every_ns = ?, user = ?, create_time = ?
		WHERE id = ?
	`, true)
}

func (r *sqliteEscalationRepo) write(ctx context.Context, rule *models.EscalationRule, query string, update bool) error {
	service, tags, excluded, days, err := encodeScope(&rule.RuleScope)
	if err != nil {
		return err
	}
	triggers, err := jsonEncode(rule.Triggers)
	if err != nil {
		return err
	}

	args := []any{
		rule.ID, boolToInt(rule.Active), rule.Priority, rule.Environment,
		service, nullString(rule.Resource), nullString(rule.Event),
		nullString(rule.Group), nullString(rule.Customer), tags, excluded, days,
		nullTimeOfDay(rule.StartTime), nullTimeOfDay(rule.EndTime), triggers,
		rule.Every.Nanoseconds(), nullString(rule.User), rule.CreateTime,
	}
	if update {
		args = append(args, rule.ID)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("write escalation rule: %w", err)
	}
	if update {
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (r *sqliteEscalationRepo) GetByID(ctx context.Context, id string) (*models.EscalationRule, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalation_rules WHERE id = ?`
	rule, err := scanEscalationRule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

func (r *sqliteEscalationRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM escalation_rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete escalation rule: %w", err)
	}
	return nil
}

func (r *sqliteEscalationRepo) ListActive(ctx context.Context) ([]*models.EscalationRule, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalation_rules WHERE active = 1 ORDER BY priority, create_time`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query escalation rules: %w", err)
	}
	defer rows.Close()

	var out []*models.EscalationRule
	for rows.Next() {
		rule, err := scanEscalationRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanEscalationRule(row rowScanner) (*models.EscalationRule, error) {
	var (
		rule                          models.EscalationRule
		resource, event, group        sql.NullString
		customer, user                sql.NullString
		startTime, endTime            sql.NullString
		service, tags, excluded, days string
		triggers                      string
		active                        int
		everyNS                       int64
	)
	err := row.Scan(
		&rule.ID, &active, &rule.Priority, &rule.Environment, &service, &resource,
		&event, &group, &customer, &tags, &excluded, &days, &startTime, &endTime,
		&triggers, &everyNS, &user, &rule.CreateTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan escalation rule: %w", err)
	}

	rule.Active = active != 0
	rule.Resource = resource.String
	rule.Event = event.String
	rule.Group = group.String
	rule.Customer = customer.String
	rule.User = user.String
	rule.Every = time.Duration(everyNS)

	if rule.StartTime, err = timeOfDayPtr(startTime); err != nil {
		return nil, err
	}
	if rule.EndTime, err = timeOfDayPtr(endTime); err != nil {
		return nil, err
	}
	if err := jsonDecode(service, &rule.Service); err != nil {
		return nil, fmt.Errorf("decode service: %w", err)
	}
	if err := jsonDecode(tags, &rule.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := jsonDecode(excluded, &rule.ExcludedTags); err != nil {
		return nil, fmt.Errorf("decode excluded tags: %w", err)
	}
	if err := jsonDecode(days, &rule.Days); err != nil {
		return nil, fmt.Errorf("decode days: %w", err)
	}
	if err := jsonDecode(triggers, &rule.Triggers); err != nil {
		return nil, fmt.Errorf("decode triggers: %w", err)
	}
	return &rule, nil
}
