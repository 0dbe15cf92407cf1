package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no job matches the given id (and owner).
	ErrNotFound = errors.New("job not found")

	// ErrStaleTransition is returned when a guarded transition matched zero
	// rows: the job was not in the expected source state. Concurrent workers
	// racing on a redelivered message surface here instead of corrupting state.
	ErrStaleTransition = errors.New("job not in expected state")
)

// Store persists jobs in PostgreSQL. All state transitions are guarded
// UPDATEs conditioned on the source status and bump the version column, so
// two workers can never both apply the same transition.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const jobColumns = `id, user_id, source_name, COALESCE(output_name, ''), COALESCE(error_message, ''), status, attempts, version, created_at, updated_at`

func (s *Store) Create(ctx context.Context, userID uuid.UUID, sourceName string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (user_id, source_name, status)
		VALUES ($1, $2, 'queued')
		RETURNING `+jobColumns,
		userID, sourceName,
	)
	return scanJob(row)
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetForUser returns the job only when it is owned by userID. A job owned by
// someone else is indistinguishable from a missing one.
func (s *Store) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND user_id = $2`, id, userID)
	return scanJob(row)
}

func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]Job, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// MarkProcessing applies queued -> processing.
func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, `
		UPDATE jobs SET status = 'processing', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'queued'`, id)
}

// MarkCompleted applies processing -> completed and records the output.
func (s *Store) MarkCompleted(ctx context.Context, id uuid.UUID, outputName string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'completed', output_name = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`, id, outputName)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkError applies processing -> error and records the failure detail.
func (s *Store) MarkError(ctx context.Context, id uuid.UUID, detail string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'error', error_message = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`, id, detail)
	if err != nil {
		return fmt.Errorf("mark error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkQueuedForRetry applies processing -> queued ahead of a scheduled
// redelivery.
func (s *Store) MarkQueuedForRetry(ctx context.Context, id uuid.UUID) error {
	return s.transition(ctx, `
		UPDATE jobs SET status = 'queued', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`, id)
}

// IncrementAttempts bumps the attempt counter and returns the new value.
func (s *Store) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx, `
		UPDATE jobs SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`, id,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

func (s *Store) transition(ctx context.Context, sql string, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.SourceName,
		&j.OutputName,
		&j.ErrorMessage,
		&j.Status,
		&j.Attempts,
		&j.Version,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}
