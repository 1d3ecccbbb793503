package app

import (
	"testing"

	"github.com/your-org/facepass/internal/config"
	"github.com/your-org/facepass/internal/face"
)

func TestNewMatcher_FollowsEncoderMetric(t *testing.T) {
	cfg := config.MatchingConfig{EuclideanTolerance: 0.5, CosineThreshold: 0.3}

	tests := []struct {
		name      string
		spec      face.EncoderSpec
		wantPol   face.Policy
		wantError bool
	}{
		{"geometric", face.NewGeometricEncoder(0, 0).Spec(), face.Policy{Metric: face.MetricEuclidean, Threshold: 0.5}, false},
		{"cosine", face.EncoderSpec{Model: "m", Dim: 4, Metric: face.MetricCosine}, face.Policy{Metric: face.MetricCosine, Threshold: 0.3}, false},
		{"no metric", face.EncoderSpec{Model: "m", Dim: 4}, face.Policy{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMatcher(cfg, tt.spec)
			if (err != nil) != tt.wantError {
				t.Fatalf("NewMatcher() error = %v, wantError %v", err, tt.wantError)
			}
			if err == nil && m.Policy() != tt.wantPol {
				t.Errorf("Policy() = %+v, want %+v", m.Policy(), tt.wantPol)
			}
		})
	}
}

func TestOpenStoreAndPhotos_Defaults(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Backend = "file"
	cfg.Storage.DataDir = t.TempDir()
	cfg.Photos.Backend = "disk"
	cfg.Photos.Dir = t.TempDir()

	store, closeStore, err := OpenStore(t.Context(), cfg)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer closeStore()
	if err := store.Ping(t.Context()); err != nil {
		t.Errorf("store Ping() error = %v", err)
	}

	photos, err := OpenPhotos(t.Context(), cfg)
	if err != nil {
		t.Fatalf("OpenPhotos() error = %v", err)
	}
	if err := photos.Ping(t.Context()); err != nil {
		t.Errorf("photos Ping() error = %v", err)
	}
}
