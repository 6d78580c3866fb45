package contract

import (
	"errors"
	"fmt"
)

// ErrPoolExhausted is returned when no connection frees up before the acquire timeout.
var ErrPoolExhausted = errors.New("connection pool exhausted")

// ErrPoolClosed is returned by Acquire after the pool has been closed.
var ErrPoolClosed = errors.New("connection pool closed")

// ErrNoStore is returned by operations that need a configured record store.
var ErrNoStore = errors.New("no record store configured")

// StoreError carries a driver error together with the statement that produced it.
type StoreError struct {
	Statement string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("statement %q failed: %v", e.Statement, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed write of the monitor log.
// The in-memory state is kept when this is returned.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist metrics log to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ErrNoExecutor is returned by operations that need a database connection when none is configured.
var ErrNoExecutor = errors.New("no database executor configured")
