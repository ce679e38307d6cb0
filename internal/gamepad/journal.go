package gamepad

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// journalWriteTimeout bounds each insert made from a notification.
	journalWriteTimeout = 2 * time.Second

	// journalTimeLayout is fixed-width so created_at sorts and compares as text.
	journalTimeLayout = "2006-01-02T15:04:05.000000Z"
)

// SQLiteJournal records registry notifications in the gamepad_events table.
//
// It is an audit trail of assignment changes. Nothing reads it back into
// the registry; assignments start empty on every run.
type SQLiteJournal struct {
	db     *sql.DB
	logger Logger
}

// NewSQLiteJournal creates a journal on an open SQLite connection.
func NewSQLiteJournal(db *sql.DB) *SQLiteJournal {
	return &SQLiteJournal{db: db, logger: noopLogger{}}
}

// SetLogger sets the logger used for write failures raised from notifications.
func (j *SQLiteJournal) SetLogger(logger Logger) {
	j.logger = logger
}

// Attach subscribes the journal to every registry notification.
func (j *SQLiteJournal) Attach(r *Registry) (cancel func()) {
	return r.OnEvent(j.handleEvent)
}

func (j *SQLiteJournal) handleEvent(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	if err := j.Record(ctx, e); err != nil {
		j.logger.Warn("gamepad journal write failed",
			"kind", string(e.Kind),
			"device_id", e.DeviceID,
			"error", err,
		)
	}
}

// Record inserts one event.
func (j *SQLiteJournal) Record(ctx context.Context, e Event) error {
	if !e.Kind.IsValid() {
		return fmt.Errorf("recording event: unknown kind %q", e.Kind)
	}
	if e.ID == "" {
		return fmt.Errorf("recording event: id is required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var oldUser sql.NullInt64
	if e.OldUserID != nil {
		oldUser = sql.NullInt64{Int64: int64(*e.OldUserID), Valid: true}
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO gamepad_events (event_id, kind, device_id, user_id, old_user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID,
		string(e.Kind),
		int64(e.DeviceID),
		int64(e.UserID),
		oldUser,
		e.CreatedAt.UTC().Format(journalTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting gamepad event: %w", err)
	}
	return nil
}

// History returns the most recent events for one device, newest first.
// limit defaults to 50 and is clamped to 200.
func (j *SQLiteJournal) History(ctx context.Context, deviceID DeviceID, limit int) ([]Event, error) {
	if !deviceID.IsValid() {
		return nil, ErrInvalidDeviceID
	}
	limit = clampHistoryLimit(limit)

	rows, err := j.db.QueryContext(ctx,
		`SELECT event_id, kind, device_id, user_id, old_user_id, created_at
		 FROM gamepad_events
		 WHERE device_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		int64(deviceID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying gamepad history: %w", err)
	}
	return scanEvents(rows, limit)
}

// Recent returns the most recent events across all devices, newest first.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]Event, error) {
	limit = clampHistoryLimit(limit)

	rows, err := j.db.QueryContext(ctx,
		`SELECT event_id, kind, device_id, user_id, old_user_id, created_at
		 FROM gamepad_events
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent gamepad events: %w", err)
	}
	return scanEvents(rows, limit)
}

// Prune deletes events older than the given duration and returns how many
// rows were removed.
func (j *SQLiteJournal) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(journalTimeLayout)
	result, err := j.db.ExecContext(ctx,
		"DELETE FROM gamepad_events WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting gamepad events: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

func scanEvents(rows *sql.Rows, capacity int) ([]Event, error) {
	defer rows.Close()

	events := make([]Event, 0, capacity)
	for rows.Next() {
		var (
			e         Event
			kind      string
			deviceID  int64
			userID    int64
			oldUser   sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &kind, &deviceID, &userID, &oldUser, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning gamepad event: %w", err)
		}

		e.Kind = EventKind(kind)
		e.DeviceID = DeviceID(deviceID)
		e.UserID = UserID(userID)
		if oldUser.Valid {
			u := UserID(oldUser.Int64)
			e.OldUserID = &u
		}

		ts, err := time.Parse(journalTimeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = ts

		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gamepad events: %w", err)
	}
	return events, nil
}
