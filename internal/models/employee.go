package models

import (
	"time"

	"github.com/your-org/facepass/internal/face"
)

// Employee is one enrolled identity.
type Employee struct {
	EmployeeID   string        `json:"employee_id" db:"employee_id"`
	Name         string        `json:"name" db:"name"`
	Encoding     face.Encoding `json:"-" db:"encoding"`
	PhotoRef     string        `json:"photo_path,omitempty" db:"photo_ref"`
	RegisteredAt time.Time     `json:"registered_at" db:"registered_at"`
}

// Candidate returns the employee as a gallery entry.
func (e *Employee) Candidate() face.Candidate {
	return face.Candidate{ID: e.EmployeeID, Encoding: e.Encoding}
}
