package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facepass/internal/attendance"
	"github.com/your-org/facepass/pkg/dto"
)

type AttendanceHandler struct {
	svc *attendance.Service
}

func NewAttendanceHandler(svc *attendance.Service) *AttendanceHandler {
	return &AttendanceHandler{svc: svc}
}

// Mark identifies the person in the submitted photos, or verifies them
// against employee_id when one is given, and records attendance.
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req attendance.AttendanceRequest
	if isMultipart(c) {
		photos, err := formPhotos(c)
		if err != nil {
			respondError(c, err)
			return
		}
		req = attendance.AttendanceRequest{
			Photos:     photos,
			EmployeeID: c.PostForm("employee_id"),
			Name:       c.PostForm("name"),
		}
	} else {
		var body dto.AttendanceRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_input"})
			return
		}
		photos, err := base64Photos(body.Photos)
		if err != nil {
			respondError(c, err)
			return
		}
		req = attendance.AttendanceRequest{Photos: photos, EmployeeID: body.EmployeeID, Name: body.Name}
	}

	res, err := h.svc.MarkAttendance(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AttendanceResponse{
		Success: true,
		Message: "Attendance marked successfully",
		Employee: dto.MatchedEmployee{
			EmployeeID: res.Employee.EmployeeID,
			Name:       res.Employee.Name,
			Confidence: res.Match.Score,
		},
		Event: dto.NewAttendanceEventResponse(res.Event),
	})
}

// List returns the attendance of :date, or of today when no date is given.
func (h *AttendanceHandler) List(c *gin.Context) {
	date := c.Param("date")
	if date == "" {
		date = h.svc.Today()
	}

	events, err := h.svc.ListAttendance(c.Request.Context(), date)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.AttendanceEventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, dto.NewAttendanceEventResponse(ev))
	}
	c.JSON(http.StatusOK, dto.AttendanceListResponse{Date: date, Attendance: resp, Total: len(resp)})
}
