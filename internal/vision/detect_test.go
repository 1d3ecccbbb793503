package vision

import (
	"image"
	"math"
	"testing"
)

func TestIoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     [4]float32
		expected float32
	}{
		{"identical", [4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}, 1},
		{"disjoint", [4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}, 0},
		{"half overlap", [4]float32{0, 0, 10, 10}, [4]float32{5, 0, 15, 10}, 50.0 / 150.0},
		{"degenerate", [4]float32{0, 0, 0, 0}, [4]float32{0, 0, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iou(tt.a, tt.b)
			if math.Abs(float64(got-tt.expected)) > 1e-6 {
				t.Errorf("iou(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestNMS(t *testing.T) {
	dets := []detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.7},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.9},
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.8},
	}

	got := nms(dets, 0.4)
	if len(got) != 2 {
		t.Fatalf("nms() kept %d boxes, want 2", len(got))
	}
	if got[0].Confidence != 0.9 || got[1].Confidence != 0.8 {
		t.Errorf("nms() = %+v, want confidences 0.9 then 0.8", got)
	}
}

func TestDecodeStride(t *testing.T) {
	stride := 32
	cells := (detInputW / stride) * (detInputH / stride) * anchorsPerStride
	scores := make([]float32, cells)
	bboxes := make([]float32, cells*4)

	// anchor 0 of cell (cx=2, cy=1)
	idx := (1*(detInputW/stride) + 2) * anchorsPerStride
	scores[idx] = 0.95
	copy(bboxes[idx*4:], []float32{1, 1, 1, 1})

	// same image size as the model input, so no scaling
	got := decodeStride(scores, bboxes, stride, detInputW, detInputH, 0.5)
	if len(got) != 1 {
		t.Fatalf("decodeStride() returned %d boxes, want 1", len(got))
	}
	want := [4]float32{32, 0, 96, 64}
	if got[0].BBox != want {
		t.Errorf("BBox = %v, want %v", got[0].BBox, want)
	}

	// half-size image halves the coordinates
	got = decodeStride(scores, bboxes, stride, detInputW/2, detInputH/2, 0.5)
	want = [4]float32{16, 0, 48, 32}
	if len(got) != 1 || got[0].BBox != want {
		t.Errorf("scaled decodeStride() = %+v, want BBox %v", got, want)
	}
}

func TestDetectionRegion_OffsetsByOrigin(t *testing.T) {
	d := detection{BBox: [4]float32{10.4, 20.6, 30.2, 40.9}, Confidence: 0.8}

	got := d.region(image.Pt(100, 200))
	want := image.Rect(110, 220, 131, 241)
	if got.Bounds != want {
		t.Errorf("region() = %v, want %v", got.Bounds, want)
	}
	if got.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8", got.Confidence)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	if !normalize(v) {
		t.Fatal("normalize() = false, want true")
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("normalize() = %v, want [0.6 0.8]", v)
	}

	if normalize([]float32{0, 0}) {
		t.Error("normalize(zero) = true, want false")
	}
}
