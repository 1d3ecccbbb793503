package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/observability"
)

const (
	ArcFaceModel = "arcface-w600k-r50"
	ArcFaceDim   = 512

	embInputW = 112
	embInputH = 112
)

type embSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func newEmbSession(modelPath string) (*embSession, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, embInputH, embInputW))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	s := &embSession{input: input}

	s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, ArcFaceDim))
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	s.session, err = ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		[]string{"683"},
		[]ort.Value{s.input},
		[]ort.Value{s.output},
		nil,
	)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}
	return s, nil
}

func (s *embSession) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// ArcFaceEncoder produces L2-normalized 512-d ArcFace embeddings, compared
// by cosine similarity.
type ArcFaceEncoder struct {
	pool *Pool[*embSession]
}

// NewArcFaceEncoder loads poolSize sessions of the w600k_r50 model.
func NewArcFaceEncoder(modelPath string, poolSize int) (*ArcFaceEncoder, error) {
	pool, err := NewPool(poolSize, DefaultAcquireTimeout,
		func() (*embSession, error) { return newEmbSession(modelPath) },
		(*embSession).destroy,
	)
	if err != nil {
		return nil, fmt.Errorf("load embedder %s: %w", modelPath, err)
	}
	return &ArcFaceEncoder{pool: pool}, nil
}

func (e *ArcFaceEncoder) Spec() face.EncoderSpec {
	return face.EncoderSpec{Model: ArcFaceModel, Dim: ArcFaceDim, Metric: face.MetricCosine}
}

// Encode embeds the face in r. Every failure, including an unavailable
// session, is reported as face.ErrNoFaceDetected.
func (e *ArcFaceEncoder) Encode(ctx context.Context, img image.Image, r face.Region) (face.Encoding, error) {
	crop := cropFace(img, r.Bounds)
	if crop == nil {
		return face.Encoding{}, fmt.Errorf("%w: region %v outside image %v", face.ErrNoFaceDetected, r.Bounds, img.Bounds())
	}
	input := preprocessForEmbedding(crop, embInputW, embInputH)

	s, err := e.pool.Acquire(ctx)
	if err != nil {
		return face.Encoding{}, fmt.Errorf("%w: acquire embedder session: %w", face.ErrNoFaceDetected, err)
	}
	observability.SessionsInUse.WithLabelValues("embedder").Inc()
	defer func() {
		observability.SessionsInUse.WithLabelValues("embedder").Dec()
		e.pool.Release(s)
	}()

	copy(s.input.GetData(), input)

	start := time.Now()
	if err := s.session.Run(); err != nil {
		return face.Encoding{}, fmt.Errorf("%w: run embedding: %w", face.ErrNoFaceDetected, err)
	}
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	vec := make([]float32, ArcFaceDim)
	copy(vec, s.output.GetData())
	if !normalize(vec) {
		return face.Encoding{}, fmt.Errorf("%w: degenerate embedding", face.ErrNoFaceDetected)
	}

	return face.Encoding{Model: ArcFaceModel, Vector: vec}, nil
}

// Close releases all sessions.
func (e *ArcFaceEncoder) Close() {
	e.pool.Close()
}

// normalize scales v to unit length in place. It reports false for a zero
// or non-finite vector.
func normalize(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return false
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return true
}
