package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/domain"
	"github.com/SaiDhinakar/M.A.R.L.IN-edna-species-classifier/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// dataset and job store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.marlin/data/marlin.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".marlin", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "marlin.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DatasetStore returns a DatasetStore interface backed by this store.
func (s *Store) DatasetStore() driven.DatasetStore {
	return &datasetStore{store: s}
}

// JobStore returns a JobStore interface backed by this store.
func (s *Store) JobStore() driven.JobStore {
	return &jobStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Dataset Store ====================

// datasetStore implements driven.DatasetStore.
type datasetStore struct {
	store *Store
}

var _ driven.DatasetStore = (*datasetStore)(nil)

// SaveDataset stores or updates dataset metadata.
func (s *datasetStore) SaveDataset(ctx context.Context, dataset *domain.Dataset) error {
	if dataset.ID == "" {
		return fmt.Errorf("%w: dataset ID is empty", domain.ErrInvalidInput)
	}
	if dataset.CreatedAt.IsZero() {
		dataset.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO datasets (id, name, description, read_count, labeled_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			read_count = excluded.read_count,
			labeled_count = excluded.labeled_count
	`, dataset.ID, dataset.Name, dataset.Description,
		dataset.ReadCount, dataset.LabeledCount, dataset.CreatedAt)

	if err != nil {
		return fmt.Errorf("saving dataset: %w", err)
	}
	return nil
}

// GetDataset retrieves a dataset by ID.
func (s *datasetStore) GetDataset(ctx context.Context, id string) (*domain.Dataset, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, description, read_count, labeled_count, created_at
		FROM datasets WHERE id = ?
	`, id)

	var dataset domain.Dataset
	if err := row.Scan(&dataset.ID, &dataset.Name, &dataset.Description,
		&dataset.ReadCount, &dataset.LabeledCount, &dataset.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning dataset: %w", err)
	}

	return &dataset, nil
}

// ListDatasets returns all datasets, newest first.
func (s *datasetStore) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, description, read_count, labeled_count, created_at
		FROM datasets ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying datasets: %w", err)
	}
	defer rows.Close()

	var datasets []domain.Dataset //nolint:prealloc // size unknown from query
	for rows.Next() {
		var dataset domain.Dataset
		if err := rows.Scan(&dataset.ID, &dataset.Name, &dataset.Description,
			&dataset.ReadCount, &dataset.LabeledCount, &dataset.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		datasets = append(datasets, dataset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating datasets: %w", err)
	}

	return datasets, nil
}

// SaveReads appends reads to a dataset, preserving ingestion order,
// and refreshes the dataset's read counts.
func (s *datasetStore) SaveReads(ctx context.Context, datasetID string, reads []domain.Read) error {
	if _, err := s.GetDataset(ctx, datasetID); err != nil {
		return err
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var position int
	row := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position), -1) + 1 FROM reads WHERE dataset_id = ?", datasetID)
	if err := row.Scan(&position); err != nil {
		return fmt.Errorf("getting next position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reads
			(id, dataset_id, position, sequence, label, location, collected_at, source,
			 length, gc_content, ambiguous_frac)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, read := range reads {
		var collectedAt any
		if !read.Sample.CollectedAt.IsZero() {
			collectedAt = read.Sample.CollectedAt
		}
		if _, err := stmt.ExecContext(ctx, read.ID, datasetID, position+i,
			read.Sequence, read.Label, read.Sample.Location, collectedAt, read.Sample.Source,
			read.Quality.Length, read.Quality.GCContent, read.Quality.AmbiguousFrac); err != nil {
			return fmt.Errorf("saving read %s: %w", read.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE datasets SET
			read_count = (SELECT COUNT(*) FROM reads WHERE dataset_id = ?),
			labeled_count = (SELECT COUNT(*) FROM reads WHERE dataset_id = ? AND label != '')
		WHERE id = ?
	`, datasetID, datasetID, datasetID)
	if err != nil {
		return fmt.Errorf("updating dataset counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetReads returns a dataset's reads in ingestion order.
func (s *datasetStore) GetReads(ctx context.Context, datasetID string) ([]domain.Read, error) {
	if _, err := s.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, sequence, label, location, collected_at, source,
			length, gc_content, ambiguous_frac
		FROM reads WHERE dataset_id = ?
		ORDER BY position
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("querying reads: %w", err)
	}
	defer rows.Close()

	var reads []domain.Read //nolint:prealloc // size unknown from query
	for rows.Next() {
		var read domain.Read
		var collectedAt sql.NullTime
		if err := rows.Scan(&read.ID, &read.Sequence, &read.Label,
			&read.Sample.Location, &collectedAt, &read.Sample.Source,
			&read.Quality.Length, &read.Quality.GCContent, &read.Quality.AmbiguousFrac); err != nil {
			return nil, fmt.Errorf("scanning read: %w", err)
		}
		if collectedAt.Valid {
			read.Sample.CollectedAt = collectedAt.Time
		}
		reads = append(reads, read)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reads: %w", err)
	}

	return reads, nil
}

// ==================== Job Store ====================

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// Save stores or updates a training job.
func (s *jobStore) Save(ctx context.Context, job *domain.TrainingJob) error {
	if job.ID == "" {
		return fmt.Errorf("%w: job ID is empty", domain.ErrInvalidInput)
	}

	paramsJSON, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshalling params: %w", err)
	}

	var startedAt, finishedAt any
	if !job.StartedAt.IsZero() {
		startedAt = job.StartedAt
	}
	if !job.FinishedAt.IsZero() {
		finishedAt = job.FinishedAt
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO jobs
			(id, dataset_id, params, state, stage, error_kind, error_reason,
			 bundle_version, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			stage = excluded.stage,
			error_kind = excluded.error_kind,
			error_reason = excluded.error_reason,
			bundle_version = excluded.bundle_version,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, job.ID, job.DatasetID, string(paramsJSON), string(job.State), job.Stage,
		job.ErrorKind, job.ErrorReason, job.BundleVersion,
		job.CreatedAt, startedAt, finishedAt)

	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (s *jobStore) Get(ctx context.Context, id string) (*domain.TrainingJob, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, dataset_id, params, state, stage, error_kind, error_reason,
			bundle_version, created_at, started_at, finished_at
		FROM jobs WHERE id = ?
	`, id)

	return scanJob(row)
}

// List returns all jobs, newest first.
func (s *jobStore) List(ctx context.Context) ([]domain.TrainingJob, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, dataset_id, params, state, stage, error_kind, error_reason,
			bundle_version, created_at, started_at, finished_at
		FROM jobs ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.TrainingJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// scanJob scans a single job row.
func scanJob(row *sql.Row) (*domain.TrainingJob, error) {
	var job domain.TrainingJob
	var state, paramsJSON string
	var startedAt, finishedAt sql.NullTime

	if err := row.Scan(&job.ID, &job.DatasetID, &paramsJSON, &state, &job.Stage,
		&job.ErrorKind, &job.ErrorReason, &job.BundleVersion,
		&job.CreatedAt, &startedAt, &finishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &job.Params); err != nil {
		return nil, fmt.Errorf("unmarshaling params: %w", err)
	}

	job.State = domain.JobState(state)
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = finishedAt.Time
	}

	return &job, nil
}

// scanJobRows scans a job from *sql.Rows.
func scanJobRows(rows *sql.Rows) (*domain.TrainingJob, error) {
	var job domain.TrainingJob
	var state, paramsJSON string
	var startedAt, finishedAt sql.NullTime

	if err := rows.Scan(&job.ID, &job.DatasetID, &paramsJSON, &state, &job.Stage,
		&job.ErrorKind, &job.ErrorReason, &job.BundleVersion,
		&job.CreatedAt, &startedAt, &finishedAt); err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &job.Params); err != nil {
		return nil, fmt.Errorf("unmarshaling params: %w", err)
	}

	job.State = domain.JobState(state)
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = finishedAt.Time
	}

	return &job, nil
}
