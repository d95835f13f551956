package errors

import (
	"errors"
	"fmt"
)

// ErrValidation is the sentinel all validation failures wrap, so callers can
// match the whole class with errors.Is.
var ErrValidation = errors.New("validation failed")

// ErrNotFound marks lookups for memories that do not exist. Delete treats it
// as a no-op rather than a failure.
var ErrNotFound = errors.New("memory not found")

// ErrProviderUnavailable marks a degraded embedding/extraction provider. It
// is recovered locally and never surfaced from save or search.
var ErrProviderUnavailable = errors.New("provider unavailable")

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (err *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", err.Field, err.Reason)
}

func (err *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type NotFoundError struct {
	ID string
}

func NewNotFound(id string) *NotFoundError {
	return &NotFoundError{ID: id}
}

func (err *NotFoundError) Error() string {
	return fmt.Sprintf("memory not found: %s", err.ID)
}

func (err *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ProviderUnavailableError wraps the underlying provider failure together
// with the provider's name for logging.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func NewProviderUnavailable(provider string, err error) *ProviderUnavailableError {
	return &ProviderUnavailableError{Provider: provider, Err: err}
}

func (err *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable: %s: %v", err.Provider, err.Err)
}

func (err *ProviderUnavailableError) Unwrap() error { return err.Err }

func (err *ProviderUnavailableError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

// StoreConnectivityError is fatal to the operation that hit it. The caller or
// scheduler decides whether to retry.
type StoreConnectivityError struct {
	Store string
	Err   error
}

func NewStoreConnectivity(store string, err error) *StoreConnectivityError {
	return &StoreConnectivityError{Store: store, Err: err}
}

func (err *StoreConnectivityError) Error() string {
	return fmt.Sprintf("store unreachable: %s: %v", err.Store, err.Err)
}

func (err *StoreConnectivityError) Unwrap() error { return err.Err }

// SyncItemError records a single failed candidate inside a sync run. It is
// counted, never propagated, so one bad memory cannot abort the batch.
type SyncItemError struct {
	MemoryID string
	Attempts int
	Err      error
}

func (err *SyncItemError) Error() string {
	return fmt.Sprintf("sync failed for memory %s (attempt %d): %v", err.MemoryID, err.Attempts, err.Err)
}

func (err *SyncItemError) Unwrap() error { return err.Err }
