package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/facepass/internal/config"
	"github.com/your-org/facepass/internal/face"
	"github.com/your-org/facepass/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies embedded migrations that are not yet recorded in
// schema_migrations, each in its own transaction.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scan applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") && !done[e.Name()] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrationsFS.ReadFile("migrations/" + file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return fmt.Errorf("execute migration %s: %w", file, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, file); err != nil {
				return fmt.Errorf("record migration %s: %w", file, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		slog.Info("applied migration", "version", file)
	}
	return nil
}

// --- Employees ---

func (s *PostgresStore) CreateEmployee(ctx context.Context, e *models.Employee) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO employees (employee_id, name, encoding, encoding_model, photo_ref, registered_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.EmployeeID, e.Name, pgvector.NewVector(e.Encoding.Vector), e.Encoding.Model, e.PhotoRef, e.RegisteredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create employee %q: %w", e.EmployeeID, face.ErrDuplicateIdentifier)
		}
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// GetEmployee returns nil, nil when id is not registered.
func (s *PostgresStore) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT employee_id, name, encoding, encoding_model, photo_ref, registered_at
		 FROM employees WHERE employee_id = $1`, id)

	e, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

// ListEmployees returns employees in registration order.
func (s *PostgresStore) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT employee_id, name, encoding, encoding_model, photo_ref, registered_at
		 FROM employees ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var (
		e     models.Employee
		vec   pgvector.Vector
		model string
	)
	if err := row.Scan(&e.EmployeeID, &e.Name, &vec, &model, &e.PhotoRef, &e.RegisteredAt); err != nil {
		return nil, err
	}
	e.Encoding = face.Encoding{Model: model, Vector: vec.Slice()}
	return &e, nil
}

// --- Attendance ---

func (s *PostgresStore) AppendAttendance(ctx context.Context, ev *models.AttendanceEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attendance_events (id, employee_id, name, date_key, ts, confidence, metric, mode)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.EmployeeID, ev.Name, ev.Date, ev.Timestamp, ev.Confidence, ev.Metric, string(ev.Mode),
	)
	if err != nil {
		return fmt.Errorf("append attendance: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttendance(ctx context.Context, date string) ([]models.AttendanceEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, employee_id, name, date_key, ts, confidence, metric, mode
		 FROM attendance_events WHERE date_key = $1 ORDER BY seq`, date)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	events := []models.AttendanceEvent{}
	for rows.Next() {
		var ev models.AttendanceEvent
		var mode string
		if err := rows.Scan(&ev.ID, &ev.EmployeeID, &ev.Name, &ev.Date, &ev.Timestamp, &ev.Confidence, &ev.Metric, &mode); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		ev.Mode = models.MatchMode(mode)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return events, nil
}
