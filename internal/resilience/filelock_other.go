//go:build !unix

package resilience

import "os"

// Advisory locking is unavailable; writes still go through temp-file rename

func tryLockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }

func lockContended(error) bool { return false }
