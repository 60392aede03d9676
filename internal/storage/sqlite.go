package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance, creating the
// parent directory of dbPath if needed
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Run operations

const runColumns = `
	id, run_id, strategy, params, element_kind, status, input_count, chunk_count,
	quality, error, started_at, completed_at, created_at, updated_at`

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var params string
	var status string
	var quality sql.NullFloat64
	var runErr sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.RunID, &run.Strategy, &params, &run.ElementKind, &status,
		&run.InputCount, &run.ChunkCount, &quality, &runErr,
		&run.StartedAt, &completedAt, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("failed to decode params of run %s: %w", run.RunID, err)
	}
	if quality.Valid {
		q := quality.Float64
		run.Quality = &q
	}
	if runErr.Valid {
		e := runErr.String
		run.Error = &e
	}
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

func encodeParams(params map[string]float64) (string, error) {
	if params == nil {
		return "{}", nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}
	return string(data), nil
}

// createRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) createRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	params, err := encodeParams(run.Params)
	if err != nil {
		return err
	}

	var exists int
	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE run_id = ?", run.RunID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("run %s: %w", run.RunID, ErrAlreadyExists)
	}

	query := `
		INSERT INTO runs (run_id, strategy, params, element_kind, status, input_count,
		                  chunk_count, quality, error, started_at, completed_at,
		                  created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.Status == "" {
		run.Status = RunRunning
	}

	result, err := q.ExecContext(ctx, query,
		run.RunID, run.Strategy, params, run.ElementKind, string(run.Status),
		run.InputCount, run.ChunkCount, run.Quality, run.Error,
		run.StartedAt, run.CompletedAt, now, now)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	run.CreatedAt = now
	run.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateRun(ctx context.Context, run *Run) error {
	return s.createRunWithQuerier(ctx, s.querier(), run)
}

// getRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getRunWithQuerier(ctx context.Context, q querier, runID string) (*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE run_id = ?`
	run, err := scanRun(q.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (*Run, error) {
	return s.getRunWithQuerier(ctx, s.querier(), runID)
}

// updateRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) updateRunWithQuerier(ctx context.Context, q querier, run *Run) error {
	params, err := encodeParams(run.Params)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs
		SET strategy = ?, params = ?, status = ?, input_count = ?, chunk_count = ?,
		    quality = ?, error = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		run.Strategy, params, string(run.Status), run.InputCount, run.ChunkCount,
		run.Quality, run.Error, run.CompletedAt, now, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	run.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateRun(ctx context.Context, run *Run) error {
	return s.updateRunWithQuerier(ctx, s.querier(), run)
}

// listRunsWithQuerier returns the newest runs first; limit <= 0 returns all
func (s *SQLiteStorage) listRunsWithQuerier(ctx context.Context, q querier, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return s.listRunsWithQuerier(ctx, s.querier(), limit)
}

// Chunk operations

// upsertChunkWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) upsertChunkWithQuerier(ctx context.Context, q querier, chunk *Chunk) error {
	// Use atomic INSERT ... ON CONFLICT to avoid race conditions
	query := `
		INSERT INTO chunks (
			run_id, chunk_index, offset_start, length, elements, content_hash,
			quality, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, chunk_index)
		DO UPDATE SET
			offset_start = excluded.offset_start,
			length = excluded.length,
			elements = excluded.elements,
			content_hash = excluded.content_hash,
			quality = excluded.quality,
			updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		chunk.RunID, chunk.ChunkIndex, chunk.Offset, chunk.Length,
		chunk.Elements, chunk.ContentHash[:], chunk.Quality,
		now, now,
	).Scan(&chunk.ID, &chunk.CreatedAt, &chunk.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return s.upsertChunkWithQuerier(ctx, s.querier(), chunk)
}

// listChunksByRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listChunksByRunWithQuerier(ctx context.Context, q querier, runID int64) ([]*Chunk, error) {
	query := `
		SELECT id, run_id, chunk_index, offset_start, length, elements, content_hash,
		       quality, created_at, updated_at
		FROM chunks
		WHERE run_id = ?
		ORDER BY chunk_index
	`
	rows, err := q.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*Chunk, 0)
	for rows.Next() {
		var chunk Chunk
		var hash []byte
		var quality sql.NullFloat64

		err := rows.Scan(
			&chunk.ID, &chunk.RunID, &chunk.ChunkIndex, &chunk.Offset, &chunk.Length,
			&chunk.Elements, &hash, &quality, &chunk.CreatedAt, &chunk.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		copy(chunk.ContentHash[:], hash)
		if quality.Valid {
			v := quality.Float64
			chunk.Quality = &v
		}

		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStorage) ListChunksByRun(ctx context.Context, runID int64) ([]*Chunk, error) {
	return s.listChunksByRunWithQuerier(ctx, s.querier(), runID)
}

// deleteChunksByRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) deleteChunksByRunWithQuerier(ctx context.Context, q querier, runID int64) error {
	query := `DELETE FROM chunks WHERE run_id = ?`
	_, err := q.ExecContext(ctx, query, runID)
	return err
}

func (s *SQLiteStorage) DeleteChunksByRun(ctx context.Context, runID int64) error {
	return s.deleteChunksByRunWithQuerier(ctx, s.querier(), runID)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{}

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM runs
	`, string(RunCompleted), string(RunFailed)).Scan(&status.RunsCount, &status.CompletedRuns, &status.FailedRuns)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(length), 0) FROM chunks").
		Scan(&status.ChunksCount, &status.ElementsStored)
	if err != nil {
		return nil, err
	}

	runs, err := s.listRunsWithQuerier(ctx, q, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		status.LastRun = runs[0]
	}

	version, err := SchemaVersion(ctx, q)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()

	// Calculate database size
	var pageCount, pageSize int
	err = q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DBSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		MigrationsCurrent:  status.SchemaVersion == CurrentSchemaVersion,
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Transaction implementations route every operation through the transaction

func (t *sqliteTx) CreateRun(ctx context.Context, run *Run) error {
	return t.storage.createRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) GetRun(ctx context.Context, runID string) (*Run, error) {
	return t.storage.getRunWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) UpdateRun(ctx context.Context, run *Run) error {
	return t.storage.updateRunWithQuerier(ctx, t.querier(), run)
}

func (t *sqliteTx) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	return t.storage.listRunsWithQuerier(ctx, t.querier(), limit)
}

func (t *sqliteTx) UpsertChunk(ctx context.Context, chunk *Chunk) error {
	return t.storage.upsertChunkWithQuerier(ctx, t.querier(), chunk)
}

func (t *sqliteTx) ListChunksByRun(ctx context.Context, runID int64) ([]*Chunk, error) {
	return t.storage.listChunksByRunWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) DeleteChunksByRun(ctx context.Context, runID int64) error {
	return t.storage.deleteChunksByRunWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
