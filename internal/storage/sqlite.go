package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	path string
	db   *sql.DB

	alerts    *sqliteAlertRepo
	rules     *sqliteRuleRepo
	escRules  *sqliteEscalationRepo
	blackouts *sqliteBlackoutRepo
	oncalls   *sqliteOnCallRepo
	groups    *sqliteGroupRepo
	channels  *sqliteChannelRepo
	delays    *sqliteDelayRepo
	history   *sqliteHistoryRepo
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

// Open initializes the database connection.
func (s *SQLiteStore) Open() error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s.db = db
	s.alerts = &sqliteAlertRepo{db: db}
	s.rules = &sqliteRuleRepo{db: db}
	s.escRules = &sqliteEscalationRepo{db: db}
	s.blackouts = &sqliteBlackoutRepo{db: db}
	s.oncalls = &sqliteOnCallRepo{db: db}
	s.groups = &sqliteGroupRepo{db: db}
	s.channels = &sqliteChannelRepo{db: db}
	s.delays = &sqliteDelayRepo{db: db}
	s.history = &sqliteHistoryRepo{db: db}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return fmt.Errorf("store not open")
	}
	return runMigrations(s.db)
}

func (s *SQLiteStore) Alerts() AlertRepository                       { return s.alerts }
func (s *SQLiteStore) NotificationRules() NotificationRuleRepository { return s.rules }
func (s *SQLiteStore) EscalationRules() EscalationRuleRepository     { return s.escRules }
func (s *SQLiteStore) Blackouts() BlackoutRepository                 { return s.blackouts }
func (s *SQLiteStore) OnCalls() OnCallRepository                     { return s.oncalls }
func (s *SQLiteStore) Groups() GroupRepository                       { return s.groups }
func (s *SQLiteStore) Channels() ChannelRepository                   { return s.channels }
func (s *SQLiteStore) Delays() DelayRepository                       { return s.delays }
func (s *SQLiteStore) NotificationHistory() NotificationHistoryRepository {
	return s.history
}

// jsonEncode marshals a value for a JSON text column. Nil slices encode
// as empty JSON arrays so scans round-trip cleanly.
func jsonEncode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal column: %w", err)
	}
	return string(data), nil
}

func jsonDecode(data string, v any) error {
	if data == "" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTimeOfDay(t *models.TimeOfDay) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.String(), Valid: true}
}

func timeOfDayPtr(s sql.NullString) (*models.TimeOfDay, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := models.ParseTimeOfDay(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
