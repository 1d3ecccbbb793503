package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/facepass/internal/models"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// AttendanceRequest is the JSON form of an attendance mark. EmployeeID
// switches from identification to verification against that employee.
type AttendanceRequest struct {
	Photos     []string `json:"photos"`
	EmployeeID string   `json:"employee_id,omitempty"`
	Name       string   `json:"name,omitempty"`
}

type AttendanceEventResponse struct {
	ID         uuid.UUID `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Name       string    `json:"name"`
	Timestamp  string    `json:"timestamp"`
	Date       string    `json:"date"`
	Confidence float64   `json:"confidence"`
	Metric     string    `json:"metric"`
	Mode       string    `json:"mode"`
}

type MatchedEmployee struct {
	EmployeeID string  `json:"employee_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type AttendanceResponse struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message"`
	Employee MatchedEmployee         `json:"employee"`
	Event    AttendanceEventResponse `json:"event"`
}

type AttendanceListResponse struct {
	Date       string                    `json:"date"`
	Attendance []AttendanceEventResponse `json:"attendance"`
	Total      int                       `json:"total"`
}

// WSEvent is a WebSocket message for real-time attendance delivery.
type WSEvent struct {
	Type string                  `json:"type"` // attendance_marked
	Data AttendanceEventResponse `json:"data"`
}

func FormatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func NewAttendanceEventResponse(ev models.AttendanceEvent) AttendanceEventResponse {
	return AttendanceEventResponse{
		ID:         ev.ID,
		EmployeeID: ev.EmployeeID,
		Name:       ev.Name,
		Timestamp:  FormatTime(ev.Timestamp),
		Date:       ev.Date,
		Confidence: ev.Confidence,
		Metric:     ev.Metric,
		Mode:       string(ev.Mode),
	}
}
