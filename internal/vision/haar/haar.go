// Package haar provides a face.Detector backed by an OpenCV Haar cascade.
//
// The OpenCV binding is only compiled with the gocv build tag. Without it,
// New fails and the service falls back to the ONNX detector.
package haar

import (
	"image"
	"sort"

	"github.com/your-org/facepass/internal/face"
)

const (
	ScaleFactor  = 1.1
	MinNeighbors = 4
)

// Options tunes the cascade.
type Options struct {
	// MinSize is the smallest face side in pixels. Zero lets OpenCV decide.
	MinSize int
}

// toRegions converts cascade hits to regions in the frame of bounds,
// largest first. Cascade hits carry no score, so Confidence is 1.
func toRegions(rects []image.Rectangle, bounds image.Rectangle) []face.Region {
	regions := make([]face.Region, 0, len(rects))
	for _, r := range rects {
		r = r.Add(bounds.Min).Intersect(bounds)
		if r.Empty() {
			continue
		}
		regions = append(regions, face.Region{Bounds: r, Confidence: 1})
	}
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i].Bounds.Size(), regions[j].Bounds.Size()
		return a.X*a.Y > b.X*b.Y
	})
	return regions
}
