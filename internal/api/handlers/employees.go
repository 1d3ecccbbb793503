package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facepass/internal/attendance"
	"github.com/your-org/facepass/internal/models"
	"github.com/your-org/facepass/pkg/dto"
)

type EmployeeHandler struct {
	svc *attendance.Service
}

func NewEmployeeHandler(svc *attendance.Service) *EmployeeHandler {
	return &EmployeeHandler{svc: svc}
}

// Register accepts multipart employee_id, name and photo1..photo9, or the
// JSON form in dto.RegisterRequest.
func (h *EmployeeHandler) Register(c *gin.Context) {
	var req attendance.RegisterRequest
	if isMultipart(c) {
		photos, err := formPhotos(c)
		if err != nil {
			respondError(c, err)
			return
		}
		req = attendance.RegisterRequest{
			EmployeeID: c.PostForm("employee_id"),
			Name:       c.PostForm("name"),
			Photos:     photos,
		}
	} else {
		var body dto.RegisterRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_input"})
			return
		}
		photos, err := base64Photos(body.Photos)
		if err != nil {
			respondError(c, err)
			return
		}
		req = attendance.RegisterRequest{EmployeeID: body.EmployeeID, Name: body.Name, Photos: photos}
	}

	res, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.RegisterResponse{
		Success:  true,
		Message:  "Employee registered successfully",
		Employee: employeeResponse(res.Employee),
	})
}

func (h *EmployeeHandler) List(c *gin.Context) {
	employees, err := h.svc.ListEmployees(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.EmployeeResponse, 0, len(employees))
	for i := range employees {
		resp = append(resp, employeeResponse(&employees[i]))
	}
	c.JSON(http.StatusOK, dto.EmployeeListResponse{Employees: resp, Total: len(resp)})
}

func (h *EmployeeHandler) Get(c *gin.Context) {
	e, err := h.svc.GetEmployee(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, employeeResponse(e))
}

func (h *EmployeeHandler) Photo(c *gin.Context) {
	data, contentType, err := h.svc.EmployeePhoto(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

func employeeResponse(e *models.Employee) dto.EmployeeResponse {
	resp := dto.EmployeeResponse{
		EmployeeID:   e.EmployeeID,
		Name:         e.Name,
		RegisteredAt: dto.FormatTime(e.RegisteredAt),
		EncodingDim:  e.Encoding.Dim(),
	}
	if e.PhotoRef != "" {
		resp.PhotoURL = "/v1/employees/" + url.PathEscape(e.EmployeeID) + "/photo"
	}
	return resp
}
