package attendance

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/observability"
)

// Encode runs detection and encoding over photos. Images run concurrently,
// bounded by the service-wide worker count. Per-image failures are recorded
// in the result; only request cancellation fails the call.
func (s *Service) Encode(ctx context.Context, photos []Upload) (*BatchResult, error) {
	if err := validatePhotos(photos); err != nil {
		return nil, err
	}

	results := make([]ImageResult, len(photos))
	var g errgroup.Group
	for i, up := range photos {
		g.Go(func() error {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				results[i] = ImageResult{Index: i, Name: up.Name, Err: err}
				return nil
			}
			results[i] = s.processImage(ctx, i, up)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, r := range results {
		observability.ImagesProcessed.WithLabelValues(outcome(r.Err)).Inc()
		if r.Err != nil {
			slog.Info("image discarded", "index", r.Index, "name", r.Name, "error", r.Err)
		}
	}
	return &BatchResult{Images: results}, nil
}

func validatePhotos(photos []Upload) error {
	if len(photos) == 0 {
		return fmt.Errorf("%w: at least one photo is required", face.ErrInvalidInput)
	}
	if len(photos) > MaxPhotos {
		return fmt.Errorf("%w: at most %d photos are accepted, got %d", face.ErrInvalidInput, MaxPhotos, len(photos))
	}
	for i, p := range photos {
		if p.Open == nil {
			return fmt.Errorf("%w: photo %d has no content", face.ErrInvalidInput, i+1)
		}
	}
	return nil
}

// processImage runs with one semaphore slot held by the caller. The slot is
// released when the decode and encode work finishes, which may be after a
// timeout has already returned a result.
func (s *Service) processImage(ctx context.Context, idx int, up Upload) ImageResult {
	res := ImageResult{Index: idx, Name: up.Name}

	if !allowedExtensions[up.ext()] {
		s.sem.Release(1)
		res.Err = fmt.Errorf("%w: unsupported file type %q", face.ErrInvalidInput, up.Name)
		return res
	}

	ictx, cancel := context.WithTimeout(ctx, s.opts.ImageTimeout)
	defer cancel()

	type encoded struct {
		enc    face.Encoding
		region face.Region
		err    error
	}
	done := make(chan encoded, 1)
	go func() {
		defer s.sem.Release(1)

		start := time.Now()
		img, err := s.decode(up)
		observability.InferenceDuration.WithLabelValues("decode").Observe(time.Since(start).Seconds())
		if err != nil {
			done <- encoded{err: err}
			return
		}
		enc, region, err := s.encodeFirst(ictx, img)
		done <- encoded{enc, region, err}
	}()

	select {
	case o := <-done:
		res.Encoding, res.Region, res.Err = o.enc, o.region, o.err
	case <-ictx.Done():
		res.Err = fmt.Errorf("%w: %w", face.ErrNoFaceDetected, ictx.Err())
	}
	return res
}

// decode spools the upload to a temp file, bounded by MaxImageBytes, checks
// the declared dimensions against MaxImagePixels and decodes it. The temp
// file is removed before returning.
func (s *Service) decode(up Upload) (image.Image, error) {
	rc, err := up.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %w", face.ErrInvalidInput, up.Name, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(s.opts.TempDir, "facepass-*"+up.ext())
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	n, err := io.Copy(tmp, io.LimitReader(rc, s.opts.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("spool %q: %w", up.Name, err)
	}
	if n > s.opts.MaxImageBytes {
		return nil, fmt.Errorf("%w: %q exceeds %d bytes", face.ErrInvalidInput, up.Name, s.opts.MaxImageBytes)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %q: %w", up.Name, err)
	}
	cfg, _, err := image.DecodeConfig(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %q: %w", face.ErrNoFaceDetected, up.Name, err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > s.opts.MaxImagePixels {
		return nil, fmt.Errorf("%w: %q is %dx%d, over the %d pixel limit",
			face.ErrNoFaceDetected, up.Name, cfg.Width, cfg.Height, s.opts.MaxImagePixels)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %q: %w", up.Name, err)
	}
	img, _, err := image.Decode(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %q: %w", face.ErrNoFaceDetected, up.Name, err)
	}
	return img, nil
}

// encodeFirst encodes the first detected region that yields a usable
// encoding of the configured spec.
func (s *Service) encodeFirst(ctx context.Context, img image.Image) (face.Encoding, face.Region, error) {
	spec := s.encoder.Spec()
	var lastErr error

	start := time.Now()
	for region := range s.detector.Detect(ctx, img) {
		enc, err := s.encoder.Encode(ctx, img, region)
		if err == nil && (enc.Model != spec.Model || enc.Dim() != spec.Dim) {
			err = fmt.Errorf("%w: encoder produced %s/%d, declared %s/%d",
				face.ErrIncompatibleEncoding, enc.Model, enc.Dim(), spec.Model, spec.Dim)
		}
		if err == nil {
			observability.InferenceDuration.WithLabelValues("encode").Observe(time.Since(start).Seconds())
			return enc, region, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr != nil {
		if errors.Is(lastErr, face.ErrNoFaceDetected) {
			return face.Encoding{}, face.Region{}, lastErr
		}
		return face.Encoding{}, face.Region{}, fmt.Errorf("%w: %w", face.ErrNoFaceDetected, lastErr)
	}
	if err := ctx.Err(); err != nil {
		return face.Encoding{}, face.Region{}, fmt.Errorf("%w: %w", face.ErrNoFaceDetected, err)
	}
	return face.Encoding{}, face.Region{}, face.ErrNoFaceDetected
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "encoded"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, face.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, face.ErrNoFaceDetected):
		return "no_face"
	default:
		return "error"
	}
}
