// Package attendance registers employees from photos and marks attendance
// by matching new photos against the registered employees.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/models"
	"github.com/your-org/facepass/internal/observability"
)

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrPhotoNotFound    = errors.New("photo not found")
)

// DefaultMaxImagePixels is the largest image accepted by default (50 MP).
const DefaultMaxImagePixels = 50_000_000

// Store persists employees and the attendance log.
type Store interface {
	CreateEmployee(ctx context.Context, e *models.Employee) error
	// GetEmployee returns nil, nil for an unknown id.
	GetEmployee(ctx context.Context, id string) (*models.Employee, error)
	// ListEmployees returns employees in registration order.
	ListEmployees(ctx context.Context) ([]models.Employee, error)
	AppendAttendance(ctx context.Context, ev *models.AttendanceEvent) error
	ListAttendance(ctx context.Context, date string) ([]models.AttendanceEvent, error)
	Ping(ctx context.Context) error
}

// PhotoStore keeps the canonical registration photo of each employee.
type PhotoStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Publisher is notified of every accepted attendance mark.
type Publisher interface {
	PublishAttendance(ctx context.Context, ev models.AttendanceEvent) error
}

type Options struct {
	WorkerCount   int
	ImageTimeout  time.Duration
	TempDir       string
	MaxImageBytes int64
	// MaxImagePixels bounds the declared width*height of an image before
	// its pixels are decoded.
	MaxImagePixels int64
	Location       *time.Location
	Publishers     []Publisher
	Now            func() time.Time
}

func (o *Options) setDefaults() {
	if o.WorkerCount <= 0 {
		o.WorkerCount = 4
	}
	if o.ImageTimeout <= 0 {
		o.ImageTimeout = 10 * time.Second
	}
	if o.MaxImageBytes <= 0 {
		o.MaxImageBytes = 10 << 20
	}
	if o.MaxImagePixels <= 0 {
		o.MaxImagePixels = DefaultMaxImagePixels
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type Service struct {
	store    Store
	photos   PhotoStore
	detector face.Detector
	encoder  face.Encoder
	matcher  *face.Matcher
	sem      *semaphore.Weighted
	opts     Options
}

// NewService wires the pipeline. photos may be nil, in which case no
// registration photo is kept. The matcher's metric must be the one the
// encoder declares.
func NewService(store Store, photos PhotoStore, detector face.Detector, encoder face.Encoder, matcher *face.Matcher, opts Options) (*Service, error) {
	if spec := encoder.Spec(); matcher.Policy().Metric != spec.Metric {
		return nil, fmt.Errorf("matcher metric %s does not fit encoder %s (%s)",
			matcher.Policy().Metric, spec.Model, spec.Metric)
	}
	opts.setDefaults()

	return &Service{
		store:    store,
		photos:   photos,
		detector: detector,
		encoder:  encoder,
		matcher:  matcher,
		sem:      semaphore.NewWeighted(int64(opts.WorkerCount)),
		opts:     opts,
	}, nil
}

func (s *Service) Matcher() *face.Matcher {
	return s.matcher
}

func (s *Service) EncoderSpec() face.EncoderSpec {
	return s.encoder.Spec()
}

// Register enrolls a new employee from 1 to MaxPhotos photos.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	res, err := s.register(ctx, req)
	observability.Registrations.WithLabelValues(resultLabel(err)).Inc()
	return res, err
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	id := strings.TrimSpace(req.EmployeeID)
	name := strings.TrimSpace(req.Name)
	if err := validateEmployeeID(id); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", face.ErrInvalidInput)
	}
	if err := validatePhotos(req.Photos); err != nil {
		return nil, err
	}

	existing, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up employee: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("employee %q: %w", id, face.ErrDuplicateIdentifier)
	}

	batch, err := s.Encode(ctx, req.Photos)
	if err != nil {
		return nil, err
	}
	enc, err := batch.Aggregate()
	if err != nil {
		return &RegisterResult{Images: batch.Images}, fmt.Errorf("register %q: %w", id, err)
	}

	photoRef, err := s.storePhoto(ctx, id, req.Photos[batch.FirstSuccess()])
	if err != nil {
		return nil, err
	}

	emp := &models.Employee{
		EmployeeID:   id,
		Name:         name,
		Encoding:     enc,
		PhotoRef:     photoRef,
		RegisteredAt: s.opts.Now().UTC(),
	}
	if err := s.store.CreateEmployee(ctx, emp); err != nil {
		s.deletePhoto(photoRef)
		return nil, err
	}

	slog.Info("employee registered",
		"employee_id", id,
		"photos", len(req.Photos),
		"encoded", len(batch.Encodings()),
		"model", enc.Model,
	)
	return &RegisterResult{Employee: emp, Images: batch.Images}, nil
}

// MarkAttendance matches the photos against registered employees and
// appends an attendance event for the matched one.
func (s *Service) MarkAttendance(ctx context.Context, req AttendanceRequest) (*AttendanceResult, error) {
	mode := req.mode()
	res, err := s.markAttendance(ctx, req, mode)
	observability.AttendanceMarks.WithLabelValues(string(mode), resultLabel(err)).Inc()
	return res, err
}

func (s *Service) markAttendance(ctx context.Context, req AttendanceRequest, mode models.MatchMode) (*AttendanceResult, error) {
	if err := validatePhotos(req.Photos); err != nil {
		return nil, err
	}

	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	if len(employees) == 0 {
		return nil, face.ErrEmptyGallery
	}

	claimed := strings.TrimSpace(req.EmployeeID)
	if mode == models.ModeVerify {
		if err := checkClaim(employees, claimed, strings.TrimSpace(req.Name)); err != nil {
			return nil, err
		}
	}

	batch, err := s.Encode(ctx, req.Photos)
	if err != nil {
		return nil, err
	}
	query, err := batch.Aggregate()
	if err != nil {
		return &AttendanceResult{Images: batch.Images}, err
	}

	gallery := make([]face.Candidate, len(employees))
	for i := range employees {
		gallery[i] = employees[i].Candidate()
	}

	start := time.Now()
	var match face.Match
	if mode == models.ModeVerify {
		match, err = s.matcher.Verify(query, gallery, claimed)
	} else {
		match, err = s.matcher.Identify(query, gallery)
	}
	observability.InferenceDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	if err != nil {
		return &AttendanceResult{Images: batch.Images}, err
	}
	observability.MatchScore.WithLabelValues(string(match.Metric)).Observe(match.Score)

	emp := &employees[match.Index]
	now := s.opts.Now()
	ev := models.AttendanceEvent{
		ID:         uuid.New(),
		EmployeeID: emp.EmployeeID,
		Name:       emp.Name,
		Timestamp:  now.UTC(),
		Date:       models.DateKey(now, s.opts.Location),
		Confidence: match.Score,
		Metric:     string(match.Metric),
		Mode:       mode,
	}
	if err := s.store.AppendAttendance(ctx, &ev); err != nil {
		return nil, fmt.Errorf("record attendance: %w", err)
	}

	for _, p := range s.opts.Publishers {
		if err := p.PublishAttendance(ctx, ev); err != nil {
			slog.Warn("publish attendance event", "error", err, "event_id", ev.ID)
		}
	}

	slog.Info("attendance marked",
		"employee_id", emp.EmployeeID,
		"mode", mode,
		"confidence", match.Score,
		"metric", match.Metric,
	)
	return &AttendanceResult{Employee: emp, Match: match, Event: ev, Images: batch.Images}, nil
}

// checkClaim verifies that the claimed employee exists and, when name is
// given, that it matches the record ignoring case.
func checkClaim(employees []models.Employee, id, name string) error {
	for _, e := range employees {
		if e.EmployeeID != id {
			continue
		}
		if name != "" && !strings.EqualFold(name, strings.TrimSpace(e.Name)) {
			return fmt.Errorf("%w: name does not match employee %q", face.ErrNoMatch, id)
		}
		return nil
	}
	return fmt.Errorf("%w: employee %q is not registered", face.ErrNoMatch, id)
}

func (s *Service) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	return s.store.ListEmployees(ctx)
}

func (s *Service) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	e, err := s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %q", ErrEmployeeNotFound, id)
	}
	return e, nil
}

// ListAttendance returns the events recorded on date (YYYYMMDD or YYYY-MM-DD).
func (s *Service) ListAttendance(ctx context.Context, date string) ([]models.AttendanceEvent, error) {
	key, err := models.ParseDateKey(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", face.ErrInvalidInput, err)
	}
	return s.store.ListAttendance(ctx, key)
}

// Today returns the date key of the current day in the service timezone.
func (s *Service) Today() string {
	return models.DateKey(s.opts.Now(), s.opts.Location)
}

// EmployeePhoto returns the canonical registration photo and its content type.
func (s *Service) EmployeePhoto(ctx context.Context, id string) ([]byte, string, error) {
	e, err := s.GetEmployee(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if e.PhotoRef == "" || s.photos == nil {
		return nil, "", fmt.Errorf("%w: employee %q", ErrPhotoNotFound, id)
	}
	data, err := s.photos.GetObject(ctx, e.PhotoRef)
	if err != nil {
		return nil, "", err
	}
	return data, contentType(e.PhotoRef), nil
}

// Ping checks the backing stores.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if s.photos != nil {
		if err := s.photos.Ping(ctx); err != nil {
			return fmt.Errorf("photos: %w", err)
		}
	}
	return nil
}

func (s *Service) storePhoto(ctx context.Context, id string, up Upload) (string, error) {
	if s.photos == nil {
		return "", nil
	}

	rc, err := up.Open()
	if err != nil {
		return "", fmt.Errorf("reopen photo %q: %w", up.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, s.opts.MaxImageBytes))
	if err != nil {
		return "", fmt.Errorf("read photo %q: %w", up.Name, err)
	}

	ext := up.ext()
	key := "employees/" + url.PathEscape(id) + "/" + uuid.NewString() + ext
	if err := s.photos.PutObject(ctx, key, data, contentType(key)); err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	return key, nil
}

func (s *Service) deletePhoto(key string) {
	if s.photos == nil || key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.photos.DeleteObject(ctx, key); err != nil {
		slog.Warn("delete orphaned photo", "key", key, "error", err)
	}
}

func validateEmployeeID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: employee_id is required", face.ErrInvalidInput)
	case id == "." || id == "..":
		return fmt.Errorf("%w: invalid employee_id %q", face.ErrInvalidInput, id)
	case len(id) > 128:
		return fmt.Errorf("%w: employee_id longer than 128 bytes", face.ErrInvalidInput)
	case strings.IndexFunc(id, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: employee_id contains control characters", face.ErrInvalidInput)
	}
	return nil
}

func contentType(key string) string {
	i := strings.LastIndexByte(key, '.')
	if i >= 0 {
		if ct := mime.TypeByExtension(strings.ToLower(key[i:])); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, face.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, face.ErrNoFaceDetected):
		return "no_face"
	case errors.Is(err, face.ErrDuplicateIdentifier):
		return "duplicate"
	case errors.Is(err, face.ErrEmptyGallery):
		return "empty_gallery"
	case errors.Is(err, face.ErrNoMatch):
		return "no_match"
	case errors.Is(err, face.ErrIncompatibleEncoding):
		return "incompatible"
	default:
		return "error"
	}
}
