package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/renameio"
	"github.com/google/uuid"

	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/models"
)

const (
	employeesFile = "employees.json"
	dayStripes    = 16
	lockRetry     = 10 * time.Millisecond
)

// legacyEncodingModel is assumed for employees.json entries written before
// encodings carried a model name. Those entries hold the 128-value grayscale
// vector that the default geometric encoder produces.
var legacyEncodingModel = face.NewGeometricEncoder(face.DefaultGeometricSize, face.DefaultGeometricDim).Spec()

// FileStore keeps employees in a single JSON document and attendance in one
// JSON list per day (attendance_YYYYMMDD.json). Every write replaces the
// whole file atomically, so reads take no lock. Read-modify-write cycles hold
// an in-process mutex and an flock on a sidecar <file>.lock, which keeps
// facepassctl and the API server from losing each other's commits.
type FileStore struct {
	dir string

	employeesMu sync.Mutex
	dayLocks    [dayStripes]sync.Mutex
}

// employeeDoc is the on-disk shape of one employees.json entry.
type employeeDoc struct {
	Name          string    `json:"name"`
	EmployeeID    string    `json:"employee_id"`
	PhotoPath     string    `json:"photo_path"`
	FaceEncoding  []float32 `json:"face_encoding"`
	EncodingModel string    `json:"encoding_model"`
	RegisteredAt  docTime   `json:"registered_at"`
	Seq           int64     `json:"seq"`
}

// docTime reads RFC 3339 timestamps as well as the zone-less ISO 8601 form
// of older documents, which is taken as local time.
type docTime struct {
	time.Time
}

const legacyTimeLayout = "2006-01-02T15:04:05.999999999"

func (t docTime) MarshalJSON() ([]byte, error) {
	return t.Time.MarshalJSON()
}

func (t *docTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if v, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = v
		return nil
	}
	v, err := time.ParseInLocation(legacyTimeLayout, s, time.Local)
	if err != nil {
		return fmt.Errorf("registered_at %q: %w", s, err)
	}
	t.Time = v
	return nil
}

type attendanceDoc struct {
	ID         uuid.UUID `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	Metric     string    `json:"metric"`
	Mode       string    `json:"mode"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Close() {}

func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", s.dir)
	}
	return nil
}

// --- Employees ---

func (s *FileStore) CreateEmployee(ctx context.Context, e *models.Employee) error {
	s.employeesMu.Lock()
	defer s.employeesMu.Unlock()

	return s.withFileLock(ctx, employeesFile, func() error {
		return s.createEmployee(e)
	})
}

func (s *FileStore) createEmployee(e *models.Employee) error {
	docs, err := s.readEmployees()
	if err != nil {
		return err
	}
	if _, exists := docs[e.EmployeeID]; exists {
		return fmt.Errorf("create employee %q: %w", e.EmployeeID, face.ErrDuplicateIdentifier)
	}

	var seq int64
	for _, d := range docs {
		seq = max(seq, d.Seq)
	}
	docs[e.EmployeeID] = employeeDoc{
		Name:          e.Name,
		EmployeeID:    e.EmployeeID,
		PhotoPath:     e.PhotoRef,
		FaceEncoding:  e.Encoding.Vector,
		EncodingModel: e.Encoding.Model,
		RegisteredAt:  docTime{e.RegisteredAt},
		Seq:           seq + 1,
	}

	if err := s.writeJSON(employeesFile, docs); err != nil {
		return fmt.Errorf("create employee %q: %w", e.EmployeeID, err)
	}
	return nil
}

// GetEmployee returns nil, nil when id is not registered.
func (s *FileStore) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	docs, err := s.readEmployees()
	if err != nil {
		return nil, err
	}
	d, ok := docs[id]
	if !ok {
		return nil, nil
	}
	e := d.employee()
	return &e, nil
}

// ListEmployees returns employees in registration order.
func (s *FileStore) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	docs, err := s.readEmployees()
	if err != nil {
		return nil, err
	}

	sorted := make([]employeeDoc, 0, len(docs))
	for _, d := range docs {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Seq != sorted[j].Seq {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].EmployeeID < sorted[j].EmployeeID
	})

	employees := make([]models.Employee, len(sorted))
	for i, d := range sorted {
		employees[i] = d.employee()
	}
	return employees, nil
}

func (s *FileStore) readEmployees() (map[string]employeeDoc, error) {
	docs := make(map[string]employeeDoc)
	if err := s.readJSON(employeesFile, &docs); err != nil {
		return nil, fmt.Errorf("read employees: %w", err)
	}
	for id, d := range docs {
		if d.EmployeeID == "" {
			d.EmployeeID = id
		}
		if d.EncodingModel == "" && len(d.FaceEncoding) == legacyEncodingModel.Dim {
			d.EncodingModel = legacyEncodingModel.Model
		}
		docs[id] = d
	}
	return docs, nil
}

func (d employeeDoc) employee() models.Employee {
	return models.Employee{
		EmployeeID:   d.EmployeeID,
		Name:         d.Name,
		Encoding:     face.NewEncoding(d.EncodingModel, d.FaceEncoding),
		PhotoRef:     d.PhotoPath,
		RegisteredAt: d.RegisteredAt.Time,
	}
}

// --- Attendance ---

func (s *FileStore) AppendAttendance(ctx context.Context, ev *models.AttendanceEvent) error {
	name, err := attendanceFile(ev.Date)
	if err != nil {
		return err
	}

	mu := s.dayLock(ev.Date)
	mu.Lock()
	defer mu.Unlock()

	return s.withFileLock(ctx, name, func() error {
		return s.appendAttendance(name, ev)
	})
}

func (s *FileStore) appendAttendance(name string, ev *models.AttendanceEvent) error {
	var docs []attendanceDoc
	if err := s.readJSON(name, &docs); err != nil {
		return fmt.Errorf("read attendance %s: %w", ev.Date, err)
	}
	docs = append(docs, attendanceDoc{
		ID:         ev.ID,
		EmployeeID: ev.EmployeeID,
		Name:       ev.Name,
		Timestamp:  ev.Timestamp,
		Confidence: ev.Confidence,
		Metric:     ev.Metric,
		Mode:       string(ev.Mode),
	})

	if err := s.writeJSON(name, docs); err != nil {
		return fmt.Errorf("append attendance %s: %w", ev.Date, err)
	}
	return nil
}

// ListAttendance returns the events of date in append order. A day with no
// log yields an empty slice.
func (s *FileStore) ListAttendance(ctx context.Context, date string) ([]models.AttendanceEvent, error) {
	name, err := attendanceFile(date)
	if err != nil {
		return nil, err
	}

	var docs []attendanceDoc
	if err := s.readJSON(name, &docs); err != nil {
		return nil, fmt.Errorf("read attendance %s: %w", date, err)
	}

	events := make([]models.AttendanceEvent, len(docs))
	for i, d := range docs {
		events[i] = models.AttendanceEvent{
			ID:         d.ID,
			EmployeeID: d.EmployeeID,
			Name:       d.Name,
			Timestamp:  d.Timestamp,
			Date:       date,
			Confidence: d.Confidence,
			Metric:     d.Metric,
			Mode:       models.MatchMode(d.Mode),
		}
	}
	return events, nil
}

// dayLock returns the stripe serializing appends to date within this process.
func (s *FileStore) dayLock(date string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(date))
	return &s.dayLocks[h.Sum32()%dayStripes]
}

func attendanceFile(date string) (string, error) {
	key, err := models.ParseDateKey(date)
	if err != nil || key != date {
		return "", fmt.Errorf("%w: attendance date %q", face.ErrInvalidInput, date)
	}
	return "attendance_" + key + ".json", nil
}

// --- JSON documents ---

// withFileLock runs fn while holding an exclusive flock on name's sidecar
// lock file.
func (s *FileStore) withFileLock(ctx context.Context, name string, fn func() error) error {
	lock := flock.New(filepath.Join(s.dir, name+".lock"))
	ok, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", name)
	}
	defer lock.Unlock()

	return fn()
}

// readJSON decodes name into v. A missing file leaves v untouched.
func (s *FileStore) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return renameio.WriteFile(filepath.Join(s.dir, name), data, 0o644)
}
