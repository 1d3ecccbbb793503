package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/models"
)

func newEmployee(id, name string, v ...float32) *models.Employee {
	return &models.Employee{
		EmployeeID:   id,
		Name:         name,
		Encoding:     face.NewEncoding("test", v),
		PhotoRef:     "employees/" + id + "/photo.jpg",
		RegisteredAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestFileStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := s.CreateEmployee(ctx, newEmployee("E1", "Alice", 0.1, 0.2)); err != nil {
		t.Fatalf("CreateEmployee() error = %v", err)
	}

	got, err := s.GetEmployee(ctx, "E1")
	if err != nil {
		t.Fatalf("GetEmployee() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetEmployee() = nil, want employee")
	}
	if got.Name != "Alice" || got.Encoding.Model != "test" || got.Encoding.Dim() != 2 {
		t.Errorf("GetEmployee() = %+v", got)
	}
	if !got.RegisteredAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("RegisteredAt = %v", got.RegisteredAt)
	}

	missing, err := s.GetEmployee(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetEmployee(missing) = %v, %v, want nil, nil", missing, err)
	}
}

func TestFileStore_DuplicateLeavesOriginal(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())

	if err := s.CreateEmployee(ctx, newEmployee("E1", "Alice", 1, 1)); err != nil {
		t.Fatalf("CreateEmployee() error = %v", err)
	}
	err := s.CreateEmployee(ctx, newEmployee("E1", "Mallory", 9, 9))
	if !errors.Is(err, face.ErrDuplicateIdentifier) {
		t.Fatalf("CreateEmployee(duplicate) error = %v, want ErrDuplicateIdentifier", err)
	}

	got, _ := s.GetEmployee(ctx, "E1")
	if got.Name != "Alice" || got.Encoding.Vector[0] != 1 {
		t.Errorf("original record changed: %+v", got)
	}
}

func TestFileStore_ConcurrentCreateSameID(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateEmployee(ctx, newEmployee("E1", fmt.Sprintf("writer-%d", i), float32(i)))
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, face.ErrDuplicateIdentifier):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != n-1 {
		t.Errorf("succeeded = %d, duplicates = %d, want 1 and %d", ok, dup, n-1)
	}
}

func TestFileStore_ListEmployeesRegistrationOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir())

	for _, id := range []string{"zed", "amy", "mia"} {
		if err := s.CreateEmployee(ctx, newEmployee(id, id, 1)); err != nil {
			t.Fatalf("CreateEmployee(%s) error = %v", id, err)
		}
	}

	got, err := s.ListEmployees(ctx)
	if err != nil {
		t.Fatalf("ListEmployees() error = %v", err)
	}
	want := []string{"zed", "amy", "mia"}
	if len(got) != len(want) {
		t.Fatalf("ListEmployees() returned %d, want %d", len(got), len(want))
	}
	for i, e := range got {
		if e.EmployeeID != want[i] {
			t.Errorf("ListEmployees()[%d] = %s, want %s", i, e.EmployeeID, want[i])
		}
	}
}

func TestFileStore_EmployeesDocumentLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	_ = s.CreateEmployee(ctx, newEmployee("E1", "Alice", 0.5))

	data, err := os.ReadFile(filepath.Join(dir, "employees.json"))
	if err != nil {
		t.Fatalf("read employees.json: %v", err)
	}
	var doc map[string]map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode employees.json: %v", err)
	}
	entry, ok := doc["E1"]
	if !ok {
		t.Fatal("employees.json is not keyed by employee id")
	}
	for _, key := range []string{"name", "employee_id", "photo_path", "face_encoding", "registered_at"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("employees.json entry missing %q", key)
		}
	}
}

func TestFileStore_Attendance(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := NewFileStore(dir)

	empty, err := s.ListAttendance(ctx, "20240105")
	if err != nil {
		t.Fatalf("ListAttendance() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("ListAttendance() on empty day = %d events, want 0", len(empty))
	}

	for i, id := range []string{"E1", "E2", "E1"} {
		ev := &models.AttendanceEvent{
			ID:         uuid.New(),
			EmployeeID: id,
			Name:       id,
			Timestamp:  time.Date(2024, 1, 5, 9, i, 0, 0, time.UTC),
			Date:       "20240105",
			Confidence: 0.8,
			Metric:     "euclidean",
			Mode:       models.ModeIdentify,
		}
		if err := s.AppendAttendance(ctx, ev); err != nil {
			t.Fatalf("AppendAttendance() error = %v", err)
		}
	}

	got, err := s.ListAttendance(ctx, "20240105")
	if err != nil {
		t.Fatalf("ListAttendance() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListAttendance() = %d events, want 3", len(got))
	}
	if got[0].EmployeeID != "E1" || got[1].EmployeeID != "E2" || got[2].EmployeeID != "E1" {
		t.Errorf("events out of append order: %+v", got)
	}
	if got[0].Date != "20240105" {
		t.Errorf("Date = %q, want 20240105", got[0].Date)
	}

	if _, err := os.Stat(filepath.Join(dir, "attendance_20240105.json")); err != nil {
		t.Errorf("attendance_20240105.json not written: %v", err)
	}
}

func TestFileStore_AttendanceRejectsBadDate(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())

	for _, date := range []string{"", "2024-01-05", "../../x", "2024010"} {
		if _, err := s.ListAttendance(context.Background(), date); !errors.Is(err, face.ErrInvalidInput) {
			t.Errorf("ListAttendance(%q) error = %v, want ErrInvalidInput", date, err)
		}
	}
}

func TestFileStore_CorruptDocumentIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "employees.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := NewFileStore(dir)

	if err := s.CreateEmployee(ctx, newEmployee("E1", "Alice", 1)); err == nil {
		t.Fatal("CreateEmployee() on corrupt document error = nil, want error")
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Errorf("corrupt document was overwritten: %q", data)
	}
}

func TestFileStore_TwoStoresShareDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, _ := NewFileStore(dir)
	b, _ := NewFileStore(dir)

	const perStore = 50
	var wg sync.WaitGroup
	errs := make(chan error, 2*perStore)
	for i := 0; i < perStore; i++ {
		for name, s := range map[string]*FileStore{"a": a, "b": b} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := s.CreateEmployee(ctx, newEmployee(fmt.Sprintf("%s-%d", name, i), name, 1)); err != nil {
					errs <- err
				}
			}()
			wg.Add(1)
			go func() {
				defer wg.Done()
				ev := &models.AttendanceEvent{
					ID:         uuid.New(),
					EmployeeID: name,
					Timestamp:  time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
					Date:       "20240105",
					Mode:       models.ModeIdentify,
				}
				if err := s.AppendAttendance(ctx, ev); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("write error: %v", err)
	}

	employees, err := a.ListEmployees(ctx)
	if err != nil {
		t.Fatalf("ListEmployees() error = %v", err)
	}
	if len(employees) != 2*perStore {
		t.Errorf("ListEmployees() = %d employees, want %d", len(employees), 2*perStore)
	}
	events, err := b.ListAttendance(ctx, "20240105")
	if err != nil {
		t.Fatalf("ListAttendance() error = %v", err)
	}
	if len(events) != 2*perStore {
		t.Errorf("ListAttendance() = %d events, want %d", len(events), 2*perStore)
	}
}

func TestFileStore_LockRespectsContext(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)

	held := flock.New(filepath.Join(dir, "employees.json.lock"))
	if err := held.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.CreateEmployee(ctx, newEmployee("E1", "Alice", 1))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CreateEmployee() under foreign lock error = %v, want deadline exceeded", err)
	}
}

func TestFileStore_LegacyEmployeesDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	vec := make([]float64, 128)
	for i := range vec {
		vec[i] = 0.5
	}
	legacy := map[string]map[string]any{
		"E7": {
			"name":          "Grace",
			"employee_id":   "E7",
			"photo_path":    "employee_photos/E7_photo1.jpg",
			"face_encoding": vec,
			"registered_at": "2023-11-02T08:15:30.123456",
		},
		"E8": {
			"name":          "Linus",
			"face_encoding": vec[:64],
			"registered_at": "2023-11-03T08:00:00",
		},
	}
	data, _ := json.Marshal(legacy)
	if err := os.WriteFile(filepath.Join(dir, "employees.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := NewFileStore(dir)

	tests := []struct {
		id        string
		wantModel string
		wantAt    time.Time
	}{
		{"E7", "geometric-v1/128px/128d", time.Date(2023, 11, 2, 8, 15, 30, 123456000, time.Local)},
		{"E8", "", time.Date(2023, 11, 3, 8, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := s.GetEmployee(ctx, tt.id)
			if err != nil || got == nil {
				t.Fatalf("GetEmployee() = %v, %v", got, err)
			}
			if got.EmployeeID != tt.id {
				t.Errorf("EmployeeID = %q, want %q", got.EmployeeID, tt.id)
			}
			if got.Encoding.Model != tt.wantModel {
				t.Errorf("Encoding.Model = %q, want %q", got.Encoding.Model, tt.wantModel)
			}
			if !got.RegisteredAt.Equal(tt.wantAt) {
				t.Errorf("RegisteredAt = %v, want %v", got.RegisteredAt, tt.wantAt)
			}
		})
	}

	// the next write persists the migrated entries
	if err := s.CreateEmployee(ctx, newEmployee("E9", "Ada", 1)); err != nil {
		t.Fatalf("CreateEmployee() error = %v", err)
	}
	raw, _ := os.ReadFile(filepath.Join(dir, "employees.json"))
	var doc map[string]employeeDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode employees.json: %v", err)
	}
	if doc["E7"].EncodingModel != "geometric-v1/128px/128d" {
		t.Errorf("E7 encoding_model = %q after rewrite", doc["E7"].EncodingModel)
	}
	if doc["E8"].EmployeeID != "E8" {
		t.Errorf("E8 employee_id = %q after rewrite", doc["E8"].EmployeeID)
	}
}

func TestFileStore_DayLockStripes(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())

	seen := make(map[*sync.Mutex]bool)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 1000; i++ {
		date := start.AddDate(0, 0, i).Format("20060102")
		mu := s.dayLock(date)
		if s.dayLock(date) != mu {
			t.Fatalf("dayLock(%s) is not stable", date)
		}
		seen[mu] = true
	}
	if len(seen) > dayStripes {
		t.Errorf("dayLock handed out %d mutexes, want at most %d", len(seen), dayStripes)
	}
}
