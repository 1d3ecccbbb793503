package attendance

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/models"
)

// MaxPhotos is the most images one request may carry.
const MaxPhotos = 9

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Upload is one submitted image. Open may be called more than once.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// BytesUpload wraps an in-memory image.
func BytesUpload(name string, data []byte) Upload {
	return Upload{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func (u Upload) ext() string {
	return strings.ToLower(filepath.Ext(u.Name))
}

// ImageResult is the outcome for one submitted image. Exactly one of
// Encoding and Err is set.
type ImageResult struct {
	Index    int
	Name     string
	Encoding face.Encoding
	Region   face.Region
	Err      error
}

func (r ImageResult) OK() bool {
	return r.Err == nil
}

// BatchResult holds per-image outcomes in submission order.
type BatchResult struct {
	Images []ImageResult
}

// Encodings returns the successful encodings in submission order.
func (b *BatchResult) Encodings() []face.Encoding {
	var encs []face.Encoding
	for _, r := range b.Images {
		if r.OK() {
			encs = append(encs, r.Encoding)
		}
	}
	return encs
}

// Aggregate merges the successful encodings. With none it fails with
// face.ErrNoFaceDetected.
func (b *BatchResult) Aggregate() (face.Encoding, error) {
	return face.Aggregate(b.Encodings())
}

// FirstSuccess returns the index of the first image that produced an
// encoding, or -1.
func (b *BatchResult) FirstSuccess() int {
	for i, r := range b.Images {
		if r.OK() {
			return i
		}
	}
	return -1
}

type RegisterRequest struct {
	EmployeeID string
	Name       string
	Photos     []Upload
}

type RegisterResult struct {
	Employee *models.Employee
	Images   []ImageResult
}

// AttendanceRequest marks attendance. An empty EmployeeID identifies the
// subject among all employees; otherwise the photos are verified against
// that employee only, and Name, if set, must match the record.
type AttendanceRequest struct {
	Photos     []Upload
	EmployeeID string
	Name       string
}

func (r AttendanceRequest) mode() models.MatchMode {
	if r.EmployeeID == "" {
		return models.ModeIdentify
	}
	return models.ModeVerify
}

type AttendanceResult struct {
	Employee *models.Employee
	Match    face.Match
	Event    models.AttendanceEvent
	Images   []ImageResult
}
