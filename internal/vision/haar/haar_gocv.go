//go:build gocv

package haar

import (
	"context"
	"fmt"
	"image"
	"iter"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/your-org/facepass/internal/face"
)

// Detector runs a frontal-face Haar cascade. The classifier is not safe for
// concurrent use, so calls are serialized.
type Detector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	minSize    image.Point
}

// New loads the cascade XML at path (haarcascade_frontalface_default.xml).
func New(path string, opts Options) (*Detector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %s", path)
	}
	return &Detector{
		classifier: classifier,
		minSize:    image.Pt(opts.MinSize, opts.MinSize),
	}, nil
}

func (d *Detector) Detect(ctx context.Context, img image.Image) iter.Seq[face.Region] {
	return func(yield func(face.Region) bool) {
		if ctx.Err() != nil {
			return
		}
		rects, err := d.detect(img)
		if err != nil {
			slog.Warn("haar detection failed", "error", err)
			return
		}
		for _, r := range toRegions(rects, img.Bounds()) {
			if !yield(r) {
				return
			}
		}
	}
}

func (d *Detector) detect(img image.Image) ([]image.Rectangle, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.DetectMultiScaleWithParams(gray, ScaleFactor, MinNeighbors, 0, d.minSize, image.Point{}), nil
}

// Close frees the classifier.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.classifier.Close()
}
