// Package face holds the identity-matching core: face regions, encodings,
// the detector and encoder contracts, aggregation and matching policies.
package face

import (
	"context"
	"fmt"
	"image"
	"iter"
)

// Region is an axis-aligned face bounding box inside an image.
type Region struct {
	Bounds     image.Rectangle
	Confidence float32
}

// Metric names the distance semantics an encoder's vectors are meant for.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

// Encoding is a fixed-length identity vector tagged with the model that produced it.
// Values are treated as immutable; constructors and Clone copy the backing slice.
type Encoding struct {
	Model  string    `json:"model"`
	Vector []float32 `json:"vector"`
}

// NewEncoding copies v into a new Encoding.
func NewEncoding(model string, v []float32) Encoding {
	vec := make([]float32, len(v))
	copy(vec, v)
	return Encoding{Model: model, Vector: vec}
}

// Dim returns the dimensionality of the encoding.
func (e Encoding) Dim() int {
	return len(e.Vector)
}

// IsZero reports whether the encoding carries no vector.
func (e Encoding) IsZero() bool {
	return len(e.Vector) == 0
}

// Clone returns a deep copy.
func (e Encoding) Clone() Encoding {
	return NewEncoding(e.Model, e.Vector)
}

// CompatibleWith returns ErrIncompatibleEncoding unless both encodings come
// from the same model and have the same dimensionality.
func (e Encoding) CompatibleWith(o Encoding) error {
	if e.Model != o.Model {
		return fmt.Errorf("%w: model %q vs %q", ErrIncompatibleEncoding, e.Model, o.Model)
	}
	if e.Dim() != o.Dim() {
		return fmt.Errorf("%w: dimension %d vs %d", ErrIncompatibleEncoding, e.Dim(), o.Dim())
	}
	return nil
}

// EncoderSpec declares what an encoder produces.
type EncoderSpec struct {
	Model  string
	Dim    int
	Metric Metric
}

// Detector locates face regions in an image.
//
// The returned sequence is finite and single-pass. Detectors never fail
// loudly: an unusable model or a malformed image yields an empty sequence.
type Detector interface {
	Detect(ctx context.Context, img image.Image) iter.Seq[Region]
}

// Encoder turns one face region into an Encoding of the declared spec.
// A region that does not yield a usable vector fails with ErrNoFaceDetected.
type Encoder interface {
	Encode(ctx context.Context, img image.Image, r Region) (Encoding, error)
	Spec() EncoderSpec
}
