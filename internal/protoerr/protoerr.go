// Package protoerr defines the sentinel error kinds used to classify
// failures across the connection pipeline, per the error handling design:
// some are fatal to the connection, some are recoverable, some bubble to the
// world tick instead of the connection.
package protoerr

import "errors"

var (
	// Incomplete means more bytes are needed; not fatal, the caller should
	// read more and retry.
	Incomplete = errors.New("incomplete")
	// Malformed means the bytes read do not form a valid value; fatal for
	// the connection.
	Malformed = errors.New("malformed")
	// TooLarge means a frame exceeded the maximum permitted length; fatal.
	TooLarge = errors.New("frame too large")
	// WrongState means a packet id is not valid in the connection's current
	// state; fatal.
	WrongState = errors.New("packet invalid in current state")
	// AuthFailed means online-mode authentication failed.
	AuthFailed = errors.New("failed to authenticate")
	// Timeout means a keep-alive or outbound-queue deadline elapsed.
	Timeout = errors.New("timeout")
	// WorldAlreadyLocked means the world's session.lock is held by another
	// process.
	WorldAlreadyLocked = errors.New("world already locked")
	// RegionIO means a region-file read or write failed; a single chunk
	// failure does not take down the server.
	RegionIO = errors.New("region I/O error")
	// InventoryConflict means a container operation was rejected because the
	// caller's view of state was stale; the caller receives a refresh.
	InventoryConflict = errors.New("inventory state conflict")
)
