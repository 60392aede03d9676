package resilience

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	checkpointPrefix = "ckpt-"
	checkpointSuffix = ".gck"
	lockFileName     = ".lock"
)

// Entry describes one checkpoint file
type Entry struct {
	Path      string
	Sequence  uint64
	CreatedAt time.Time
}

// Store persists encoded checkpoints
type Store interface {
	// NextSequence reserves the next checkpoint sequence number
	NextSequence() uint64

	// Write durably stores payload as checkpoint seq and returns its path
	Write(ctx context.Context, seq uint64, payload []byte) (string, error)

	// List returns the stored checkpoints, newest first
	List(ctx context.Context) ([]Entry, error)

	// Read returns the payload of the checkpoint at path
	Read(ctx context.Context, path string) ([]byte, error)

	// Prune removes all but the newest keep checkpoints
	Prune(ctx context.Context, keep int) error

	// Purge removes every checkpoint
	Purge(ctx context.Context) error
}

// FileStore keeps checkpoints as files in a directory. Writers hold an
// exclusive flock on <dir>/.lock and readers a shared one. Every file is
// written to a temporary name and renamed into place, so a reader never sees
// a partial checkpoint; failed writes are retried with backoff.
type FileStore struct {
	dir   string
	retry RetryConfig
	seq   atomic.Uint64 // last issued sequence

	createTemp func(dir, pattern string) (*os.File, error)
}

// NewFileStore opens dir, creating it if needed. Sequence numbers continue
// after the highest checkpoint already present.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	s := &FileStore{dir: dir, retry: DefaultRetryConfig(), createTemp: os.CreateTemp}
	entries, err := s.scan()
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		s.seq.Store(entries[0].Sequence)
	}
	return s, nil
}

// Dir returns the checkpoint directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) NextSequence() uint64 {
	return s.seq.Add(1)
}

func (s *FileStore) Write(ctx context.Context, seq uint64, payload []byte) (string, error) {
	name := fmt.Sprintf("%s%010d-%d%s", checkpointPrefix, seq, time.Now().UnixNano(), checkpointSuffix)
	path := filepath.Join(s.dir, name)

	err := s.withLock(ctx, true, func() error {
		_, err := retryWithBackoff(ctx, s.retry, func() (struct{}, error) {
			return struct{}{}, s.writeFile(path, payload)
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// writeFile writes payload to a temporary file and renames it to path
func (s *FileStore) writeFile(path string, payload []byte) error {
	tmp, err := s.createTemp(s.dir, ".ckpt-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.withLock(ctx, false, func() error {
		var err error
		entries, err = s.scan()
		return err
	})
	return entries, err
}

func (s *FileStore) Read(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.withLock(ctx, false, func() error {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read checkpoint: %w", err)
		}
		return nil
	})
	return data, err
}

func (s *FileStore) Prune(ctx context.Context, keep int) error {
	return s.withLock(ctx, true, func() error {
		entries, err := s.scan()
		if err != nil {
			return err
		}
		if len(entries) <= keep {
			return nil
		}
		return removeEntries(entries[keep:])
	})
}

func (s *FileStore) Purge(ctx context.Context) error {
	return s.withLock(ctx, true, func() error {
		entries, err := s.scan()
		if err != nil {
			return err
		}
		return removeEntries(entries)
	})
}

// scan lists checkpoint files newest first. Callers hold the lock.
func (s *FileStore) scan() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		e, ok := parseEntryName(de.Name())
		if !ok {
			continue
		}
		e.Path = filepath.Join(s.dir, de.Name())
		entries = append(entries, e)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		if a.Sequence != b.Sequence {
			if a.Sequence > b.Sequence {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return entries, nil
}

// parseEntryName parses ckpt-<seq>-<unixnano>.gck
func parseEntryName(name string) (Entry, bool) {
	rest, ok := strings.CutPrefix(name, checkpointPrefix)
	if !ok {
		return Entry{}, false
	}
	rest, ok = strings.CutSuffix(rest, checkpointSuffix)
	if !ok {
		return Entry{}, false
	}
	seqPart, tsPart, ok := strings.Cut(rest, "-")
	if !ok {
		return Entry{}, false
	}

	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return Entry{}, false
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{Sequence: seq, CreatedAt: time.Unix(0, ts)}, true
}

func removeEntries(entries []Entry) error {
	var errs []error
	for _, e := range entries {
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to remove checkpoints: %w", errors.Join(errs...))
	}
	return nil
}

// withLock runs fn while holding the directory lock, retrying acquisition
// with backoff while another process holds it
func (s *FileStore) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	f, err := os.OpenFile(filepath.Join(s.dir, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer func() { _ = f.Close() }()

	_, err = retryWithBackoff(ctx, s.retry, func() (struct{}, error) {
		return struct{}{}, tryLockFile(f, exclusive)
	})
	if err != nil {
		if lockContended(err) {
			return fmt.Errorf("checkpoint directory is locked by another process: %w", err)
		}
		return fmt.Errorf("failed to lock checkpoint directory: %w", err)
	}
	defer func() { _ = unlockFile(f) }()

	return fn()
}
