package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"intranet/internal/domain/directory"
)

const userColumns = `id, name, email, department, position, hire_date, active`

func (s *Store) GetUser(ctx context.Context, userID string) (directory.User, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	user, err := scanUser(row)
	if err != nil {
		return directory.User{}, notFound(err, "user", userID)
	}
	return user, nil
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]directory.User, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []directory.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (s *Store) UpsertUser(ctx context.Context, user directory.User) error {
	var hire any
	if user.HireDate != nil {
		hire = formatDate(*user.HireDate)
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO users (id, name, email, department, position, hire_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department = excluded.department,
			position = excluded.position,
			hire_date = excluded.hire_date,
			active = excluded.active
	`, user.ID, user.Name, user.Email, user.Department, user.Position, hire, user.Active)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (directory.User, error) {
	var user directory.User
	var hire sql.NullString
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Department, &user.Position, &hire, &user.Active); err != nil {
		return directory.User{}, err
	}
	if hire.Valid && hire.String != "" {
		t, err := parseDate(hire.String)
		if err != nil {
			return directory.User{}, err
		}
		user.HireDate = &t
	}
	return user, nil
}
