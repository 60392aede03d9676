package storage

import (
	"context"
	"time"
)

// Storage defines the interface for persisting chunking runs and their chunks
type Storage interface {
	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	ListChunksByRun(ctx context.Context, runID int64) ([]*Chunk, error)
	DeleteChunksByRun(ctx context.Context, runID int64) error

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// RunStatus is the lifecycle state of a stored run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Element kinds recorded on a run
const (
	KindNumeric = "numeric"
	KindText    = "text"
	KindBytes   = "bytes"
)

// Run represents one application of a strategy to an input sequence
type Run struct {
	ID          int64
	RunID       string // UUID shared with checkpoints
	Strategy    string
	Params      map[string]float64
	ElementKind string
	Status      RunStatus
	InputCount  int64
	ChunkCount  int
	Quality     *float64 // Nullable
	Error       *string  // Nullable
	StartedAt   time.Time
	CompletedAt *time.Time // Nullable
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk represents one sealed chunk of a run. Elements holds the
// JSON-encoded element slice.
type Chunk struct {
	ID          int64
	RunID       int64
	ChunkIndex  int
	Offset      int
	Length      int
	Elements    []byte
	ContentHash [32]byte
	Quality     *float64 // Nullable
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Status contains statistics about the store
type Status struct {
	RunsCount      int
	CompletedRuns  int
	FailedRuns     int
	ChunksCount    int
	ElementsStored int64
	DBSizeMB       float64
	SchemaVersion  string
	LastRun        *Run
	Health         HealthStatus
}

// HealthStatus represents the health of the store
type HealthStatus struct {
	DatabaseAccessible bool
	MigrationsCurrent  bool
}
