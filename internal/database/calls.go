package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/voicegate/voicegate/internal/database/models"
)

// callRepo implements CallRepository.
type callRepo struct {
	db *DB
}

// NewCallRepository creates a new CallRepository.
func NewCallRepository(db *DB) CallRepository {
	return &callRepo{db: db}
}

// Create inserts a finished call record.
func (r *callRepo) Create(ctx context.Context, call *models.Call) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO calls (unique_id, caller_id, channel, start_time, end_time,
		 duration, turns, interrupts, exit_reason, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.UniqueID, call.CallerID, call.Channel, call.StartTime, call.EndTime,
		call.Duration, call.Turns, call.Interrupts, call.ExitReason, call.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting call: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

// GetByID returns a call by ID, or nil when it does not exist.
func (r *callRepo) GetByID(ctx context.Context, id int64) (*models.Call, error) {
	var c models.Call
	err := r.db.QueryRowContext(ctx,
		`SELECT id, unique_id, caller_id, channel, start_time, end_time,
		 duration, turns, interrupts, exit_reason, error
		 FROM calls WHERE id = ?`, id,
	).Scan(&c.ID, &c.UniqueID, &c.CallerID, &c.Channel, &c.StartTime, &c.EndTime,
		&c.Duration, &c.Turns, &c.Interrupts, &c.ExitReason, &c.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning call: %w", err)
	}
	return &c, nil
}

// List returns calls matching the filter, along with the total count.
func (r *callRepo) List(ctx context.Context, filter CallListFilter) ([]models.Call, int, error) {
	where := "1=1"
	args := []any{}

	if filter.ExitReason != "" {
		where += " AND exit_reason = ?"
		args = append(args, filter.ExitReason)
	}
	if filter.Search != "" {
		where += " AND (caller_id LIKE ? OR channel LIKE ?)"
		s := "%" + filter.Search + "%"
		args = append(args, s, s)
	}
	if filter.StartDate != "" {
		where += " AND start_time >= ?"
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		where += " AND start_time <= ?"
		args = append(args, filter.EndDate)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM calls WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting calls: %w", err)
	}

	query := `SELECT id, unique_id, caller_id, channel, start_time, end_time,
		 duration, turns, interrupts, exit_reason, error
		 FROM calls WHERE ` + where + ` ORDER BY start_time DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	var calls []models.Call
	for rows.Next() {
		var c models.Call
		if err := rows.Scan(&c.ID, &c.UniqueID, &c.CallerID, &c.Channel,
			&c.StartTime, &c.EndTime, &c.Duration, &c.Turns, &c.Interrupts,
			&c.ExitReason, &c.Error); err != nil {
			return nil, 0, fmt.Errorf("scanning call row: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating call rows: %w", err)
	}

	return calls, total, nil
}

// CountByExitReason returns how many calls ended with each reason.
func (r *callRepo) CountByExitReason(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT exit_reason, COUNT(*) FROM calls GROUP BY exit_reason`)
	if err != nil {
		return nil, fmt.Errorf("counting calls by exit reason: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scanning exit reason count: %w", err)
		}
		counts[reason] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exit reason counts: %w", err)
	}

	return counts, nil
}
