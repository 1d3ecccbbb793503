package handlers

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facepass/internal/attendance"
	"github.com/your-org/facepass/internal/face"
)

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

// formPhotos collects photo1..photoN from a multipart form. The scan stops
// at the first missing key; parts sent without a filename are skipped.
func formPhotos(c *gin.Context) ([]attendance.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: parse multipart form: %w", face.ErrInvalidInput, err)
	}

	var photos []attendance.Upload
	for i := 1; i <= attendance.MaxPhotos; i++ {
		files, ok := form.File[fmt.Sprintf("photo%d", i)]
		if !ok {
			break
		}
		if len(files) == 0 || files[0].Filename == "" {
			continue
		}
		photos = append(photos, fileUpload(files[0]))
	}
	return photos, nil
}

func fileUpload(fh *multipart.FileHeader) attendance.Upload {
	return attendance.Upload{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// base64Photos decodes JSON photo payloads. Each may carry a data: URL
// prefix; the file name is derived from the sniffed content type.
func base64Photos(payloads []string) ([]attendance.Upload, error) {
	photos := make([]attendance.Upload, 0, len(payloads))
	for i, p := range payloads {
		data, err := decodeBase64Image(p)
		if err != nil {
			return nil, fmt.Errorf("%w: photo %d: %w", face.ErrInvalidInput, i+1, err)
		}
		name := fmt.Sprintf("photo%d%s", i+1, sniffExt(data))
		photos = append(photos, attendance.BytesUpload(name, data))
	}
	return photos, nil
}

func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return data, nil
}

func sniffExt(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ".bin"
	}
}
