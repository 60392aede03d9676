//go:build !sqlite_cgo

package storage

// The default build uses a pure Go SQLite, so no C toolchain is needed.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
