package vision

import (
	"context"
	"fmt"
	"image"
	"iter"
	"log/slog"
	"math"
	"sort"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/observability"
)

const (
	detInputW = 640
	detInputH = 640

	// anchorsPerStride is the number of anchors per feature-map cell.
	anchorsPerStride = 2
	nmsThreshold     = 0.4
)

// strides of the det_10g feature pyramid.
var strides = []int{8, 16, 32}

// det_10g output names (no batch dimension):
//
//	scores: [12800,1] [3200,1] [800,1]   -> stride 8, 16, 32
//	bboxes: [12800,4] [3200,4] [800,4]   -> stride 8, 16, 32
//
// 12800 = (640/8)^2*2, 3200 = (640/16)^2*2, 800 = (640/32)^2*2.
// The landmark heads are not bound.
var detOutputs = []struct {
	name  string
	shape ort.Shape
}{
	{"448", ort.NewShape(12800, 1)},
	{"471", ort.NewShape(3200, 1)},
	{"494", ort.NewShape(800, 1)},
	{"451", ort.NewShape(12800, 4)},
	{"474", ort.NewShape(3200, 4)},
	{"497", ort.NewShape(800, 4)},
}

// detection is a decoded box in original image coordinates, relative to
// the image's bounds origin.
type detection struct {
	BBox       [4]float32 // x1, y1, x2, y2
	Confidence float32
}

type detSession struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
}

func newDetSession(modelPath string) (*detSession, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, detInputH, detInputW))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	s := &detSession{input: input}
	names := make([]string, len(detOutputs))
	values := make([]ort.Value, len(detOutputs))
	for i, spec := range detOutputs {
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			s.destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", spec.name, err)
		}
		s.outputs = append(s.outputs, t)
		names[i] = spec.name
		values[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"}, names,
		[]ort.Value{input}, values,
		nil,
	)
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}
	s.session = session
	return s, nil
}

func (s *detSession) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	for _, t := range s.outputs {
		t.Destroy()
	}
}

// RetinaFaceDetector runs the RetinaFace det_10g model through a pool of
// ONNX sessions.
type RetinaFaceDetector struct {
	pool      *Pool[*detSession]
	threshold float32
}

// NewRetinaFaceDetector loads poolSize sessions of the model at modelPath.
// The ONNX runtime must already be initialized.
func NewRetinaFaceDetector(modelPath string, threshold float32, poolSize int) (*RetinaFaceDetector, error) {
	pool, err := NewPool(poolSize, DefaultAcquireTimeout,
		func() (*detSession, error) { return newDetSession(modelPath) },
		(*detSession).destroy,
	)
	if err != nil {
		return nil, fmt.Errorf("load detector %s: %w", modelPath, err)
	}
	return &RetinaFaceDetector{pool: pool, threshold: threshold}, nil
}

// Detect yields faces in descending confidence order. Inference runs on the
// first iteration; failures are logged and produce an empty sequence.
func (d *RetinaFaceDetector) Detect(ctx context.Context, img image.Image) iter.Seq[face.Region] {
	return func(yield func(face.Region) bool) {
		dets, err := d.run(ctx, img)
		if err != nil {
			slog.Warn("face detection failed", "error", err)
			return
		}
		origin := img.Bounds().Min
		for _, det := range dets {
			if !yield(det.region(origin)) {
				return
			}
		}
	}
}

func (d *RetinaFaceDetector) run(ctx context.Context, img image.Image) ([]detection, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}

	start := time.Now()
	input := preprocessForDetection(img, detInputW, detInputH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	s, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire detector session: %w", err)
	}
	observability.SessionsInUse.WithLabelValues("detector").Inc()
	defer func() {
		observability.SessionsInUse.WithLabelValues("detector").Dec()
		d.pool.Release(s)
	}()

	copy(s.input.GetData(), input)

	start = time.Now()
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	var dets []detection
	for si, stride := range strides {
		dets = append(dets, decodeStride(
			s.outputs[si].GetData(),
			s.outputs[si+len(strides)].GetData(),
			stride, bounds.Dx(), bounds.Dy(), d.threshold,
		)...)
	}
	return nms(dets, nmsThreshold), nil
}

// Close releases all sessions.
func (d *RetinaFaceDetector) Close() {
	d.pool.Close()
}

// decodeStride turns one stride's anchor outputs into boxes scaled to an
// origW x origH image. Box outputs are distances from the anchor center to
// each edge, in stride units.
func decodeStride(scores, bboxes []float32, stride, origW, origH int, threshold float32) []detection {
	var dets []detection

	scaleW := float32(origW) / detInputW
	scaleH := float32(origH) / detInputH
	st := float32(stride)
	fmW := detInputW / stride
	fmH := detInputH / stride

	idx := 0
	for cy := 0; cy < fmH; cy++ {
		for cx := 0; cx < fmW; cx++ {
			for a := 0; a < anchorsPerStride; a++ {
				if idx >= len(scores) || idx*4+3 >= len(bboxes) {
					return dets
				}
				score := scores[idx]
				if score >= threshold {
					ax := float32(cx) * st
					ay := float32(cy) * st
					dets = append(dets, detection{
						BBox: [4]float32{
							clampF((ax-bboxes[idx*4+0]*st)*scaleW, 0, float32(origW)),
							clampF((ay-bboxes[idx*4+1]*st)*scaleH, 0, float32(origH)),
							clampF((ax+bboxes[idx*4+2]*st)*scaleW, 0, float32(origW)),
							clampF((ay+bboxes[idx*4+3]*st)*scaleH, 0, float32(origH)),
						},
						Confidence: score,
					})
				}
				idx++
			}
		}
	}
	return dets
}

func (d detection) region(origin image.Point) face.Region {
	r := image.Rect(
		int(d.BBox[0]), int(d.BBox[1]),
		int(math.Ceil(float64(d.BBox[2]))), int(math.Ceil(float64(d.BBox[3]))),
	)
	return face.Region{Bounds: r.Add(origin), Confidence: d.Confidence}
}

// nms sorts by confidence and drops boxes overlapping a stronger one by
// more than iouThreshold.
func nms(dets []detection, iouThreshold float32) []detection {
	if len(dets) == 0 {
		return dets
	}

	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	keep := make([]bool, len(dets))
	for i := range keep {
		keep[i] = true
	}

	for i := range dets {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(dets); j++ {
			if keep[j] && iou(dets[i].BBox, dets[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	result := dets[:0]
	for i, d := range dets {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := max(a[0], b[0])
	y1 := max(a[1], b[1])
	x2 := min(a[2], b[2])
	y2 := min(a[3], b[3])

	intersection := max(0, x2-x1) * max(0, y2-y1)

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
