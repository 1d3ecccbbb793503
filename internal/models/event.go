package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MatchMode string

const (
	ModeIdentify MatchMode = "identify"
	ModeVerify   MatchMode = "verify"
)

// AttendanceEvent is an accepted attendance mark. Events are append-only.
type AttendanceEvent struct {
	ID         uuid.UUID `json:"id" db:"id"`
	EmployeeID string    `json:"employee_id" db:"employee_id"`
	Name       string    `json:"name" db:"name"`
	Timestamp  time.Time `json:"timestamp" db:"ts"`
	Date       string    `json:"date" db:"date_key"` // YYYYMMDD in the service timezone
	Confidence float64   `json:"confidence" db:"confidence"`
	Metric     string    `json:"metric" db:"metric"`
	Mode       MatchMode `json:"mode" db:"mode"`
}

const dateKeyLayout = "20060102"

// DateKey formats t as YYYYMMDD in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(dateKeyLayout)
}

// ParseDateKey accepts YYYYMMDD or YYYY-MM-DD and returns the canonical key.
func ParseDateKey(s string) (string, error) {
	for _, layout := range []string{dateKeyLayout, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateKeyLayout), nil
		}
	}
	return "", fmt.Errorf("invalid date %q: want YYYYMMDD or YYYY-MM-DD", s)
}
