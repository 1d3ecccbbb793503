package haar

import (
	"image"
	"testing"
)

func TestToRegions(t *testing.T) {
	bounds := image.Rect(10, 10, 110, 110)
	rects := []image.Rectangle{
		image.Rect(0, 0, 20, 20),
		image.Rect(30, 30, 90, 90),
		image.Rect(95, 95, 150, 150), // clipped at the image edge
		image.Rect(200, 200, 220, 220),
	}

	got := toRegions(rects, bounds)
	if len(got) != 3 {
		t.Fatalf("toRegions() returned %d regions, want 3", len(got))
	}

	want := []image.Rectangle{
		image.Rect(40, 40, 100, 100),
		image.Rect(10, 10, 30, 30),
		image.Rect(105, 105, 110, 110),
	}
	for i, r := range got {
		if r.Bounds != want[i] {
			t.Errorf("region[%d] = %v, want %v", i, r.Bounds, want[i])
		}
		if r.Confidence != 1 {
			t.Errorf("region[%d].Confidence = %v, want 1", i, r.Confidence)
		}
	}
}
