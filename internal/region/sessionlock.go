package region

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/pumpkinwire/mcserver/internal/protoerr"
)

// sessionLockBytes is the three-byte glyph (☃, UTF-8-encoded) vanilla
// servers write into session.lock.
var sessionLockBytes = []byte{0xE2, 0x98, 0x83}

// SessionLock guards a world root for the server process's lifetime via an
// OS-advisory exclusive lock on <world>/session.lock. It is acquired once
// at startup and released on graceful shutdown.
type SessionLock struct {
	file *os.File
}

// AcquireSessionLock creates (or truncates) session.lock under worldRoot and
// takes a non-blocking exclusive flock on it. A lock already held by another
// process surfaces protoerr.WorldAlreadyLocked, which the caller should
// treat as a startup error (exit 1).
func AcquireSessionLock(worldRoot string) (*SessionLock, error) {
	path := worldRoot + "/session.lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("region: opening session lock: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", protoerr.WorldAlreadyLocked, worldRoot, err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("region: truncating session lock: %w", err)
	}
	if _, err := f.WriteAt(sessionLockBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("region: writing session lock: %w", err)
	}

	return &SessionLock{file: f}, nil
}

// Release drops the advisory lock and closes the file. Safe to call once
// during graceful shutdown.
func (l *SessionLock) Release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("region: releasing session lock: %w", err)
	}
	return l.file.Close()
}
