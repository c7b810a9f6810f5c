package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"intranet/internal/domain/directory"
)

const userColumns = `id, name, email, department, position, hire_date, active`

func (s *Store) GetUser(ctx context.Context, userID string) (directory.User, error) {
	user, err := scanUser(s.q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		return directory.User{}, notFound(err, "user", userID)
	}
	return user, nil
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]directory.User, error) {
	rows, err := s.q(ctx).Query(ctx, `SELECT `+userColumns+` FROM users WHERE active ORDER BY id`)
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
	_, err := s.q(ctx).Exec(ctx, `
    INSERT INTO users (id, name, email, department, position, hire_date, active)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (id) DO UPDATE
      SET name = EXCLUDED.name,
          email = EXCLUDED.email,
          department = EXCLUDED.department,
          position = EXCLUDED.position,
          hire_date = EXCLUDED.hire_date,
          active = EXCLUDED.active
  `, user.ID, user.Name, user.Email, user.Department, user.Position, user.HireDate, user.Active)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (directory.User, error) {
	var user directory.User
	var hire *time.Time
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Department, &user.Position, &hire, &user.Active); err != nil {
		return directory.User{}, err
	}
	user.HireDate = hire
	return user, nil
}
