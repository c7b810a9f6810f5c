package db

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"intranet/internal/domain/directory"
)

// UserWriter is the directory write side used by the seed loader.
type UserWriter interface {
	Upsert(ctx context.Context, user directory.User) error
}

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Email      string `yaml:"email"`
	Department string `yaml:"department"`
	Position   string `yaml:"position"`
	HireDate   string `yaml:"hireDate"`
	Active     *bool  `yaml:"active"`
}

// ParseSeed decodes a directory fixture. Users are active unless the fixture
// says otherwise; hireDate is YYYY-MM-DD.
func ParseSeed(data []byte) ([]directory.User, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	users := make([]directory.User, 0, len(f.Users))
	for i, su := range f.Users {
		u := directory.User{
			ID:         strings.TrimSpace(su.ID),
			Name:       su.Name,
			Email:      su.Email,
			Department: su.Department,
			Position:   su.Position,
			Active:     su.Active == nil || *su.Active,
		}
		if u.ID == "" {
			return nil, fmt.Errorf("seed user %d: id is required", i)
		}
		if raw := strings.TrimSpace(su.HireDate); raw != "" {
			hire, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return nil, fmt.Errorf("seed user %s: hireDate: %w", u.ID, err)
			}
			u.HireDate = &hire
		}
		users = append(users, u)
	}
	return users, nil
}

// Seed upserts the users listed in the YAML file at path.
func Seed(ctx context.Context, users UserWriter, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	parsed, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}
	for _, u := range parsed {
		if err := users.Upsert(ctx, u); err != nil {
			return 0, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return len(parsed), nil
}
