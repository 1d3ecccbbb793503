// Package app assembles the attendance service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/your-org/facepass/internal/attendance"
	"github.com/your-org/facepass/internal/config"
	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/storage"
	"github.com/your-org/facepass/internal/vision"
	"github.com/your-org/facepass/internal/vision/haar"
)

const (
	detectorModelFile = "det_10g.onnx"
	encoderModelFile  = "w600k_r50.onnx"
)

// App owns the service and every resource behind it.
type App struct {
	Service *attendance.Service
	Store   attendance.Store
	Photos  attendance.PhotoStore

	closers []func()
}

// New opens the configured backends and builds the service. Close releases
// everything New opened, in reverse order.
func New(ctx context.Context, cfg *config.Config, publishers ...attendance.Publisher) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	store, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, closeStore)

	photos, err := OpenPhotos(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Photos = photos

	det, enc, closeVision, err := OpenVision(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeVision)

	matcher, err := NewMatcher(cfg.Matching, enc.Spec())
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, err
	}

	a.Service, err = attendance.NewService(store, photos, det, enc, matcher, attendance.Options{
		WorkerCount:    cfg.Vision.WorkerCount,
		ImageTimeout:   cfg.Vision.ImageTimeout,
		TempDir:        cfg.Attendance.TempDir,
		MaxImageBytes:  cfg.Attendance.MaxImageBytes,
		MaxImagePixels: cfg.Attendance.MaxImagePixels,
		Location:       loc,
		Publishers:     publishers,
	})
	if err != nil {
		return nil, err
	}

	spec := enc.Spec()
	slog.Info("attendance service ready",
		"storage", cfg.Storage.Backend,
		"photos", cfg.Photos.Backend,
		"detector", cfg.Vision.Detector,
		"encoder", spec.Model,
		"metric", spec.Metric,
		"threshold", matcher.Policy().Threshold,
	)
	return a, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// OpenStore opens the employee and attendance store. Postgres is migrated
// on open.
func OpenStore(ctx context.Context, cfg *config.Config) (attendance.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := storage.NewPostgresStore(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return db, db.Close, nil
	default:
		fs, err := storage.NewFileStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil
	}
}

// OpenPhotos opens the canonical photo store.
func OpenPhotos(ctx context.Context, cfg *config.Config) (attendance.PhotoStore, error) {
	switch cfg.Photos.Backend {
	case "minio":
		m, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", cfg.MinIO.Bucket, err)
		}
		return m, nil
	default:
		return storage.NewDiskPhotoStore(cfg.Photos.Dir)
	}
}

// OpenVision builds the configured detector and encoder. The ONNX runtime
// is initialized only when one of them needs it.
func OpenVision(cfg *config.Config) (face.Detector, face.Encoder, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Vision.Detector == "retinaface" || cfg.Vision.Encoder == "arcface" {
		if err := vision.InitRuntime(cfg.Vision.ONNXLibPath); err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, vision.DestroyRuntime)
	}

	var det face.Detector
	switch cfg.Vision.Detector {
	case "haar":
		h, err := haar.New(cfg.Vision.CascadePath, haar.Options{MinSize: cfg.Vision.HaarMinSize})
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("haar detector: %w", err)
		}
		closers = append(closers, h.Close)
		det = h
	default:
		rf, err := vision.NewRetinaFaceDetector(
			filepath.Join(cfg.Vision.ModelsDir, detectorModelFile),
			float32(cfg.Vision.DetectionThreshold),
			cfg.Vision.SessionPoolSize,
		)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		closers = append(closers, rf.Close)
		det = rf
	}

	var enc face.Encoder
	switch cfg.Vision.Encoder {
	case "arcface":
		af, err := vision.NewArcFaceEncoder(
			filepath.Join(cfg.Vision.ModelsDir, encoderModelFile),
			cfg.Vision.SessionPoolSize,
		)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		closers = append(closers, af.Close)
		enc = af
	default:
		enc = face.NewGeometricEncoder(cfg.Vision.GeometricSize, cfg.Vision.GeometricDim)
	}

	return det, enc, closeAll, nil
}

// NewMatcher picks the policy for the encoder's metric.
func NewMatcher(cfg config.MatchingConfig, spec face.EncoderSpec) (*face.Matcher, error) {
	var p face.Policy
	switch spec.Metric {
	case face.MetricEuclidean:
		p = face.Policy{Metric: face.MetricEuclidean, Threshold: cfg.EuclideanTolerance}
	case face.MetricCosine:
		p = face.Policy{Metric: face.MetricCosine, Threshold: cfg.CosineThreshold}
	default:
		return nil, errors.New("encoder declares no metric")
	}
	m, err := face.NewMatcher(p)
	if err != nil {
		return nil, fmt.Errorf("matching policy: %w", err)
	}
	return m, nil
}
