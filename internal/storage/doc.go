// Package storage provides SQLite-based persistence for chunking runs.
//
// The storage layer manages:
//   - Run metadata (strategy, parameters, status, quality)
//   - Sealed chunks with their offsets, elements and content hashes
//   - Schema versioning
//
// # Database Schema
//
// Tables:
//   - runs: One row per strategy application, keyed by the run UUID
//   - chunks: Chunk elements as JSON, unique per (run_id, chunk_index)
//   - schema_version: Applied migrations, compared as semver
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("/var/lib/gochunk/gochunk.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	run := &storage.Run{
//	    RunID:       uuid.NewString(),
//	    Strategy:    "variance",
//	    Params:      map[string]float64{"window": 5, "threshold": 1},
//	    ElementKind: storage.KindNumeric,
//	}
//	if err := db.CreateRun(ctx, run); err != nil {
//	    return err
//	}
//
// # Transactions
//
// Use transactions to store a run and its chunks atomically:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	for _, c := range chunks {
//	    if err := tx.UpsertChunk(ctx, c); err != nil {
//	        return err
//	    }
//	}
//	run.Status = storage.RunCompleted
//	if err := tx.UpdateRun(ctx, run); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// Upserting a chunk with an existing (run, index) pair replaces it, so a
// resumed run can rewrite chunks it stored before an interruption.
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler.
// Building with the sqlite_cgo tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...
package storage
