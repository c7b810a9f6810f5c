package sqlite

import (
	"context"
	"fmt"
	"time"

	"intranet/internal/domain/leave"
)

const leaveColumns = `id, user_id, year, total_hours, used_hours, remaining_hours, carried_over_hours,
	granted_date, expiry_date, created_at, updated_at`

func (s *Store) FindLeave(ctx context.Context, userID string, year int) (leave.AnnualLeave, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM annual_leaves WHERE user_id = ? AND year = ?`, userID, year)
	entry, err := scanLeave(row)
	if err != nil {
		return leave.AnnualLeave{}, notFound(err, "annual leave", fmt.Sprintf("%s/%d", userID, year))
	}
	return entry, nil
}

// LockLeave reads the entry inside the caller's transaction. BEGIN IMMEDIATE
// already holds the write lock, so no row lock is needed.
func (s *Store) LockLeave(ctx context.Context, userID string, year int) (leave.AnnualLeave, error) {
	return s.FindLeave(ctx, userID, year)
}

func (s *Store) InsertLeaveIfAbsent(ctx context.Context, entry leave.AnnualLeave) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO annual_leaves (`+leaveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, year) DO NOTHING
	`, entry.ID, entry.UserID, entry.Year,
		entry.TotalHours.String(), entry.UsedHours.String(), entry.RemainingHours.String(), entry.CarriedOverHours.String(),
		formatDate(entry.GrantedDate), formatDate(entry.ExpiryDate), formatTime(entry.CreatedAt), formatTime(entry.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("insert annual leave: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) UpdateLeave(ctx context.Context, entry leave.AnnualLeave) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE annual_leaves
		SET total_hours = ?, used_hours = ?, remaining_hours = ?, carried_over_hours = ?, updated_at = ?
		WHERE id = ?
	`, entry.TotalHours.String(), entry.UsedHours.String(), entry.RemainingHours.String(), entry.CarriedOverHours.String(),
		formatTime(entry.UpdatedAt), entry.ID)
	if err != nil {
		return fmt.Errorf("update annual leave: %w", err)
	}
	return expectOne(res, "annual leave", entry.ID)
}

func (s *Store) InsertAdjustment(ctx context.Context, adj leave.Adjustment) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO leave_adjustments (id, user_id, year, hours, reason, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, adj.ID, adj.UserID, adj.Year, adj.Hours.String(), adj.Reason, adj.CreatedBy, formatTime(adj.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert leave adjustment: %w", err)
	}
	return nil
}

func (s *Store) ListAdjustments(ctx context.Context, userID string, year int) ([]leave.Adjustment, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, user_id, year, hours, reason, created_by, created_at
		FROM leave_adjustments
		WHERE user_id = ? AND year = ?
		ORDER BY created_at, id
	`, userID, year)
	if err != nil {
		return nil, fmt.Errorf("list leave adjustments: %w", err)
	}
	defer rows.Close()

	out := []leave.Adjustment{}
	for rows.Next() {
		var adj leave.Adjustment
		var createdAt string
		if err := rows.Scan(&adj.ID, &adj.UserID, &adj.Year, &adj.Hours, &adj.Reason, &adj.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		if adj.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, rows.Err()
}

func (s *Store) ListLeavesWithDepartment(ctx context.Context, year int) ([]leave.DepartmentEntry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT u.department, `+prefixed("l", leaveColumns)+`
		FROM annual_leaves l
		JOIN users u ON u.id = l.user_id
		WHERE l.year = ? AND u.active = 1
		ORDER BY u.department, l.user_id
	`, year)
	if err != nil {
		return nil, fmt.Errorf("list leaves by department: %w", err)
	}
	defer rows.Close()

	var out []leave.DepartmentEntry
	for rows.Next() {
		var dept string
		entry, err := scanLeave(rows, &dept)
		if err != nil {
			return nil, err
		}
		out = append(out, leave.DepartmentEntry{Department: dept, Leave: entry})
	}
	return out, rows.Err()
}

func (s *Store) ListExpiringLeaves(ctx context.Context, from, to time.Time) ([]leave.AnnualLeave, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+leaveColumns+`
		FROM annual_leaves
		WHERE CAST(remaining_hours AS REAL) > 0 AND expiry_date >= ? AND expiry_date <= ?
		ORDER BY expiry_date, user_id
	`, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("list expiring leaves: %w", err)
	}
	defer rows.Close()

	out := []leave.AnnualLeave{}
	for rows.Next() {
		entry, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) LeaveUserIDs(ctx context.Context, year int) (map[string]bool, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT user_id FROM annual_leaves WHERE year = ?`, year)
	if err != nil {
		return nil, fmt.Errorf("list leave users: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// scanLeave scans leaveColumns, preceded by any extra destinations.
func scanLeave(row scanner, extra ...any) (leave.AnnualLeave, error) {
	var e leave.AnnualLeave
	var granted, expiry, createdAt, updatedAt string
	dest := append(extra,
		&e.ID, &e.UserID, &e.Year, &e.TotalHours, &e.UsedHours, &e.RemainingHours, &e.CarriedOverHours,
		&granted, &expiry, &createdAt, &updatedAt)
	if err := row.Scan(dest...); err != nil {
		return leave.AnnualLeave{}, err
	}
	var err error
	if e.GrantedDate, err = parseDate(granted); err != nil {
		return leave.AnnualLeave{}, err
	}
	if e.ExpiryDate, err = parseDate(expiry); err != nil {
		return leave.AnnualLeave{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return leave.AnnualLeave{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return leave.AnnualLeave{}, err
	}
	return e, nil
}
