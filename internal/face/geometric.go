package face

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	DefaultGeometricSize = 128
	DefaultGeometricDim  = 128
)

// GeometricEncoder encodes a face by raw intensities: crop, grayscale,
// resize to a square canvas, scale to [0,1] and pad or truncate to dim.
// It needs no model weights and has weak discriminative power.
type GeometricEncoder struct {
	size int
	dim  int
}

// NewGeometricEncoder returns an encoder with a size x size canvas producing
// dim-length vectors. Non-positive arguments fall back to the defaults.
func NewGeometricEncoder(size, dim int) *GeometricEncoder {
	if size <= 0 {
		size = DefaultGeometricSize
	}
	if dim <= 0 {
		dim = DefaultGeometricDim
	}
	return &GeometricEncoder{size: size, dim: dim}
}

func (g *GeometricEncoder) Spec() EncoderSpec {
	return EncoderSpec{
		Model:  fmt.Sprintf("geometric-v1/%dpx/%dd", g.size, g.dim),
		Dim:    g.dim,
		Metric: MetricEuclidean,
	}
}

func (g *GeometricEncoder) Encode(ctx context.Context, img image.Image, r Region) (Encoding, error) {
	if err := ctx.Err(); err != nil {
		return Encoding{}, fmt.Errorf("%w: %w", ErrNoFaceDetected, err)
	}

	rect := r.Bounds.Intersect(img.Bounds())
	if rect.Empty() {
		return Encoding{}, fmt.Errorf("%w: region %v outside image %v", ErrNoFaceDetected, r.Bounds, img.Bounds())
	}

	crop := imaging.Crop(img, rect)
	gray := imaging.Grayscale(crop)
	canvas := imaging.Resize(gray, g.size, g.size, imaging.Lanczos)

	pixels := g.size * g.size
	vec := make([]float32, g.dim)
	for i := 0; i < g.dim && i < pixels; i++ {
		y, x := i/g.size, i%g.size
		vec[i] = float32(canvas.Pix[y*canvas.Stride+x*4]) / 255
	}

	return Encoding{Model: g.Spec().Model, Vector: vec}, nil
}
