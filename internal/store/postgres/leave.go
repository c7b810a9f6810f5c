package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"intranet/internal/domain/leave"
)

const leaveColumns = `id, user_id, year, total_hours::text, used_hours::text, remaining_hours::text,
	carried_over_hours::text, granted_date, expiry_date, created_at, updated_at`

func (s *Store) FindLeave(ctx context.Context, userID string, year int) (leave.AnnualLeave, error) {
	return s.findLeave(ctx, userID, year, "")
}

func (s *Store) LockLeave(ctx context.Context, userID string, year int) (leave.AnnualLeave, error) {
	return s.findLeave(ctx, userID, year, " FOR UPDATE")
}

func (s *Store) findLeave(ctx context.Context, userID string, year int, suffix string) (leave.AnnualLeave, error) {
	row := s.q(ctx).QueryRow(ctx, `SELECT `+leaveColumns+` FROM annual_leaves WHERE user_id = $1 AND year = $2`+suffix, userID, year)
	entry, err := scanLeave(row)
	if err != nil {
		return leave.AnnualLeave{}, notFound(err, "annual leave", fmt.Sprintf("%s/%d", userID, year))
	}
	return entry, nil
}

func (s *Store) InsertLeaveIfAbsent(ctx context.Context, entry leave.AnnualLeave) (bool, error) {
	tag, err := s.q(ctx).Exec(ctx, `
    INSERT INTO annual_leaves (id, user_id, year, total_hours, used_hours, remaining_hours, carried_over_hours,
      granted_date, expiry_date, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    ON CONFLICT (user_id, year) DO NOTHING
  `, entry.ID, entry.UserID, entry.Year,
		entry.TotalHours.String(), entry.UsedHours.String(), entry.RemainingHours.String(), entry.CarriedOverHours.String(),
		entry.GrantedDate, entry.ExpiryDate, entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert annual leave: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UpdateLeave(ctx context.Context, entry leave.AnnualLeave) error {
	tag, err := s.q(ctx).Exec(ctx, `
    UPDATE annual_leaves
    SET total_hours = $1, used_hours = $2, remaining_hours = $3, carried_over_hours = $4, updated_at = $5
    WHERE id = $6
  `, entry.TotalHours.String(), entry.UsedHours.String(), entry.RemainingHours.String(), entry.CarriedOverHours.String(),
		entry.UpdatedAt, entry.ID)
	if err != nil {
		return fmt.Errorf("update annual leave: %w", err)
	}
	return expectOne(tag, "annual leave", entry.ID)
}

func (s *Store) InsertAdjustment(ctx context.Context, adj leave.Adjustment) error {
	_, err := s.q(ctx).Exec(ctx, `
    INSERT INTO leave_adjustments (id, user_id, year, hours, reason, created_by, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, adj.ID, adj.UserID, adj.Year, adj.Hours.String(), adj.Reason, adj.CreatedBy, adj.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert leave adjustment: %w", err)
	}
	return nil
}

func (s *Store) ListAdjustments(ctx context.Context, userID string, year int) ([]leave.Adjustment, error) {
	rows, err := s.q(ctx).Query(ctx, `
    SELECT id, user_id, year, hours::text, reason, created_by, created_at
    FROM leave_adjustments
    WHERE user_id = $1 AND year = $2
    ORDER BY created_at, id
  `, userID, year)
	if err != nil {
		return nil, fmt.Errorf("list leave adjustments: %w", err)
	}
	defer rows.Close()

	out := []leave.Adjustment{}
	for rows.Next() {
		var adj leave.Adjustment
		var hours string
		if err := rows.Scan(&adj.ID, &adj.UserID, &adj.Year, &hours, &adj.Reason, &adj.CreatedBy, &adj.CreatedAt); err != nil {
			return nil, err
		}
		if adj.Hours, err = parseDecimal(hours); err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, rows.Err()
}

func (s *Store) ListLeavesWithDepartment(ctx context.Context, year int) ([]leave.DepartmentEntry, error) {
	rows, err := s.q(ctx).Query(ctx, `
    SELECT u.department, l.id, l.user_id, l.year, l.total_hours::text, l.used_hours::text, l.remaining_hours::text,
      l.carried_over_hours::text, l.granted_date, l.expiry_date, l.created_at, l.updated_at
    FROM annual_leaves l
    JOIN users u ON u.id = l.user_id
    WHERE l.year = $1 AND u.active
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
	rows, err := s.q(ctx).Query(ctx, `
    SELECT `+leaveColumns+`
    FROM annual_leaves
    WHERE remaining_hours > 0 AND expiry_date BETWEEN $1 AND $2
    ORDER BY expiry_date, user_id
  `, from, to)
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
	rows, err := s.q(ctx).Query(ctx, `SELECT user_id FROM annual_leaves WHERE year = $1`, year)
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

func scanLeave(row pgx.Row, extra ...any) (leave.AnnualLeave, error) {
	var e leave.AnnualLeave
	var total, used, remaining, carried string
	dest := append(extra, &e.ID, &e.UserID, &e.Year, &total, &used, &remaining, &carried,
		&e.GrantedDate, &e.ExpiryDate, &e.CreatedAt, &e.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return leave.AnnualLeave{}, err
	}
	var err error
	if e.TotalHours, err = parseDecimal(total); err != nil {
		return leave.AnnualLeave{}, err
	}
	if e.UsedHours, err = parseDecimal(used); err != nil {
		return leave.AnnualLeave{}, err
	}
	if e.RemainingHours, err = parseDecimal(remaining); err != nil {
		return leave.AnnualLeave{}, err
	}
	if e.CarriedOverHours, err = parseDecimal(carried); err != nil {
		return leave.AnnualLeave{}, err
	}
	e.GrantedDate = e.GrantedDate.UTC()
	e.ExpiryDate = e.ExpiryDate.UTC()
	return e, nil
}
