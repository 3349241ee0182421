package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arach/vif-sub000/internal/validation"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("history: run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// timeFormat has fixed-width fractions so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// List limits.
const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// Run is one execution of a scene.
type Run struct {
	ID          string
	Scene       string
	Mode        string
	Status      Status
	Output      string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	DurationMS  int64
	Validations []validation.Result
}

// Finish stamps completion fields from the outcome of a run.
func (r *Run) Finish(status Status, err error, at time.Time) {
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
	completed := at.UTC()
	r.CompletedAt = &completed
	r.DurationMS = completed.Sub(r.StartedAt).Milliseconds()
}

// Repository stores runs.
type Repository interface {
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
}

const runColumns = `id, scene, mode, status, output, error, started_at, completed_at, duration_ms, validations`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts run, assigning an id and start time when missing.
func (r *SQLiteRepository) Create(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	validationsJSON, err := marshalValidations(run.Validations)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Scene,
		run.Mode,
		string(run.Status),
		nullableString(run.Output),
		nullableString(run.Error),
		run.StartedAt.UTC().Format(timeFormat),
		nullableTime(run.CompletedAt),
		run.DurationMS,
		validationsJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// Update writes the mutable fields of run.
func (r *SQLiteRepository) Update(ctx context.Context, run *Run) error {
	validationsJSON, err := marshalValidations(run.Validations)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, output = ?, error = ?, completed_at = ?,
			duration_ms = ?, validations = ?
		WHERE id = ?`,
		string(run.Status),
		nullableString(run.Output),
		nullableString(run.Error),
		nullableTime(run.CompletedAt),
		run.DurationMS,
		validationsJSON,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Get retrieves a run by id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning run: %w", scanErr)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run             Run
		status          string
		output, errText sql.NullString
		startedAt       string
		completedAt     sql.NullString
		validationsJSON string
	)

	if err := s.Scan(
		&run.ID,
		&run.Scene,
		&run.Mode,
		&status,
		&output,
		&errText,
		&startedAt,
		&completedAt,
		&run.DurationMS,
		&validationsJSON,
	); err != nil {
		return nil, err
	}

	run.Status = Status(status)
	run.Output = output.String
	run.Error = errText.String

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	run.StartedAt = t

	if completedAt.Valid {
		ct, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
		run.CompletedAt = &ct
	}

	if validationsJSON != "" {
		if err := json.Unmarshal([]byte(validationsJSON), &run.Validations); err != nil {
			return nil, fmt.Errorf("unmarshalling validations: %w", err)
		}
	}
	return &run, nil
}

func marshalValidations(v []validation.Result) (string, error) {
	if v == nil {
		return "[]", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshalling validations: %w", err)
	}
	return string(data), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}
