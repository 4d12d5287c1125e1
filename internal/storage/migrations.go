package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Alerts table. The identity key is unique across live alerts
			-- and revision backs conditional updates.
			CREATE TABLE IF NOT EXISTS alerts (
				id TEXT PRIMARY KEY,
				environment TEXT NOT NULL,
				resource TEXT NOT NULL,
				event TEXT NOT NULL,
				customer TEXT NOT NULL DEFAULT '',
				severity TEXT NOT NULL,
				status TEXT NOT NULL,
				correlate_json TEXT NOT NULL DEFAULT '[]',
				service_json TEXT NOT NULL DEFAULT '[]',
				grp TEXT,
				value TEXT,
				text TEXT,
				tags_json TEXT NOT NULL DEFAULT '[]',
				attributes_json TEXT NOT NULL DEFAULT '{}',
				origin TEXT,
				type TEXT,
				timeout_ns INTEGER NOT NULL DEFAULT 0,
				create_time DATETIME NOT NULL,
				receive_time DATETIME NOT NULL,
				last_receive_id TEXT,
				last_receive_time DATETIME NOT NULL,
				update_time DATETIME NOT NULL,
				duplicate_count INTEGER NOT NULL DEFAULT 0,
				repeat INTEGER NOT NULL DEFAULT 0,
				previous_severity TEXT,
				trend_indication TEXT,
				history_json TEXT NOT NULL DEFAULT '[]',
				revision INTEGER NOT NULL DEFAULT 1
			);
			CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_key
				ON alerts(environment, resource, event, customer);
			CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);

			CREATE TABLE IF NOT EXISTS notification_rules (
				id TEXT PRIMARY KEY,
				name TEXT,
				active INTEGER NOT NULL DEFAULT 1,
				reactivate DATETIME,
				priority INTEGER NOT NULL DEFAULT 0,
				environment TEXT NOT NULL,
				service_json TEXT NOT NULL DEFAULT '[]',
				resource TEXT,
				event TEXT,
				grp TEXT,
				customer TEXT,
				tags_json TEXT NOT NULL DEFAULT '[]',
				excluded_tags_json TEXT NOT NULL DEFAULT '[]',
				days_json TEXT NOT NULL DEFAULT '[]',
				start_time TEXT,
				end_time TEXT,
				triggers_json TEXT NOT NULL DEFAULT '[]',
				channel_id TEXT NOT NULL,
				receivers_json TEXT NOT NULL DEFAULT '[]',
				user_ids_json TEXT NOT NULL DEFAULT '[]',
				group_ids_json TEXT NOT NULL DEFAULT '[]',
				use_oncall INTEGER NOT NULL DEFAULT 0,
				delay_ns INTEGER NOT NULL DEFAULT 0,
				text TEXT,
				user TEXT,
				create_time DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_notification_rules_env
				ON notification_rules(environment);

			CREATE TABLE IF NOT EXISTS escalation_rules (
				id TEXT PRIMARY KEY,
				active INTEGER NOT NULL DEFAULT 1,
				priority INTEGER NOT NULL DEFAULT 0,
				environment TEXT NOT NULL,
				service_json TEXT NOT NULL DEFAULT '[]',
				resource TEXT,
				event TEXT,
				grp TEXT,
				customer TEXT,
				tags_json TEXT NOT NULL DEFAULT '[]',
				excluded_tags_json TEXT NOT NULL DEFAULT '[]',
				days_json TEXT NOT NULL DEFAULT '[]',
				start_time TEXT,
				end_time TEXT,
				triggers_json TEXT NOT NULL DEFAULT '[]',
				every_ns INTEGER NOT NULL,
				user TEXT,
				create_time DATETIME NOT NULL
			);

			CREATE TABLE IF NOT EXISTS blackouts (
				id TEXT PRIMARY KEY,
				environment TEXT NOT NULL,
				service_json TEXT NOT NULL DEFAULT '[]',
				resource TEXT,
				event TEXT,
				grp TEXT,
				tags_json TEXT NOT NULL DEFAULT '[]',
				origin TEXT,
				customer TEXT,
				start_time DATETIME NOT NULL,
				end_time DATETIME NOT NULL,
				duration_ns INTEGER NOT NULL DEFAULT 0,
				user TEXT,
				text TEXT,
				create_time DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_blackouts_env ON blackouts(environment);

			CREATE TABLE IF NOT EXISTS on_calls (
				id TEXT PRIMARY KEY,
				user_ids_json TEXT NOT NULL DEFAULT '[]',
				group_ids_json TEXT NOT NULL DEFAULT '[]',
				start_date DATETIME,
				end_date DATETIME,
				start_time TEXT,
				end_time TEXT,
				repeat_type TEXT,
				repeat_days_json TEXT NOT NULL DEFAULT '[]',
				repeat_weeks_json TEXT NOT NULL DEFAULT '[]',
				repeat_months_json TEXT NOT NULL DEFAULT '[]',
				customer TEXT,
				user TEXT,
				create_time DATETIME NOT NULL
			);

			CREATE TABLE IF NOT EXISTS group_members (
				group_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				PRIMARY KEY (group_id, user_id)
			);

			CREATE TABLE IF NOT EXISTS channels (
				id TEXT PRIMARY KEY,
				name TEXT,
				type TEXT NOT NULL,
				sender TEXT,
				host TEXT
			);

			CREATE TABLE IF NOT EXISTS delayed_notifications (
				id TEXT PRIMARY KEY,
				alert_id TEXT NOT NULL,
				rule_id TEXT NOT NULL,
				fire_at DATETIME NOT NULL,
				UNIQUE (alert_id, rule_id)
			);
			CREATE INDEX IF NOT EXISTS idx_delays_fire_at
				ON delayed_notifications(fire_at);

			CREATE TABLE IF NOT EXISTS notification_history (
				id TEXT PRIMARY KEY,
				sent INTEGER NOT NULL,
				message TEXT,
				channel_id TEXT NOT NULL,
				rule_id TEXT NOT NULL,
				alert_id TEXT NOT NULL,
				sender TEXT,
				receiver TEXT,
				error TEXT,
				sent_time DATETIME NOT NULL,
				confirmed INTEGER NOT NULL DEFAULT 0,
				confirmed_time DATETIME
			);
			CREATE INDEX IF NOT EXISTS idx_notification_history_alert
				ON notification_history(alert_id);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err = tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
