package engine

import "errors"

var (
	// ErrNotFound is returned when a key has no version visible to the
	// requesting snapshot, or never existed.
	ErrNotFound = errors.New("engine: key not found")
	// ErrKeyExists is returned by Insert against a key already registered
	// in the table's index, whether or not its chain is visible to the
	// caller's snapshot.
	ErrKeyExists = errors.New("engine: key already exists")
	// ErrConflict is the write-write conflict outcome of spec section 4.6:
	// some other transaction committed a version the caller's snapshot
	// cannot see before the caller's own write could land.
	ErrConflict = errors.New("engine: write-write conflict")
	// ErrRevertTooLate is returned by Revert once another transaction may
	// already have observed the version being reverted.
	ErrRevertTooLate = errors.New("engine: version no longer revertible")
	// ErrTableNotFound is returned by Store operations against an unknown
	// table name.
	ErrTableNotFound = errors.New("engine: table not found")
	// ErrTableExists is returned by Store.CreateTable for a name already
	// registered.
	ErrTableExists = errors.New("engine: table already exists")
	// ErrLogExhausted surfaces a page manager out of memory back to the
	// caller instead of panicking mid-write.
	ErrLogExhausted = errors.New("engine: log page allocation failed")
)
