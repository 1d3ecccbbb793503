//go:build !gocv

package haar

import (
	"context"
	"errors"
	"image"
	"iter"

	"github.com/your-org/facepass/internal/face"
)

var ErrUnavailable = errors.New("haar detector not compiled in (build with -tags gocv)")

// Detector is a placeholder that never finds a face.
type Detector struct{}

func New(path string, opts Options) (*Detector, error) {
	return nil, ErrUnavailable
}

func (d *Detector) Detect(ctx context.Context, img image.Image) iter.Seq[face.Region] {
	return func(yield func(face.Region) bool) {}
}

func (d *Detector) Close() {}
