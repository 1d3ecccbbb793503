package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facepass/internal/attendance"
	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/storage"
	"github.com/your-org/facepass/pkg/dto"
)

// classify maps a service error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, face.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, face.ErrNoFaceDetected):
		return http.StatusUnprocessableEntity, "no_face_detected"
	case errors.Is(err, face.ErrDuplicateIdentifier):
		return http.StatusConflict, "duplicate_identifier"
	case errors.Is(err, face.ErrEmptyGallery):
		return http.StatusConflict, "empty_gallery"
	case errors.Is(err, face.ErrNoMatch):
		return http.StatusNotFound, "no_match"
	case errors.Is(err, face.ErrIncompatibleEncoding):
		return http.StatusConflict, "incompatible_encoding"
	case errors.Is(err, attendance.ErrEmployeeNotFound),
		errors.Is(err, attendance.ErrPhotoNotFound),
		errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, dto.ErrorResponse{Success: false, Error: err.Error(), Code: code})
}
