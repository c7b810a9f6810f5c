package directory

import "time"

type User struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Email      string     `json:"email" yaml:"email"`
	Department string     `json:"department" yaml:"department"`
	Position   string     `json:"position" yaml:"position"`
	HireDate   *time.Time `json:"hireDate,omitempty" yaml:"hireDate,omitempty"`
	Active     bool       `json:"active" yaml:"active"`
}
