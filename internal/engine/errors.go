package engine

import (
	"errors"
	"fmt"

	"doandearn/internal/repo"
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is lets errors.Is(err, repo.ErrNotFound) keep working across the engine boundary.
func (e NotFoundError) Is(target error) bool {
	return target == repo.ErrNotFound
}

// ConflictError reports a transition attempted from a non-pending state.
type ConflictError struct {
	Kind   string
	ID     string
	Status string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %s is %s; only pending records can transition", e.Kind, e.ID, e.Status)
}

// InsufficientBalanceError reports a debit that would make a balance negative.
type InsufficientBalanceError struct {
	Email   string
	Balance int64
	Amount  int64
}

func (e InsufficientBalanceError) Error() string {
	return fmt.Sprintf("account %s has %d coins, cannot debit %d", e.Email, e.Balance, e.Amount)
}

// StoreError wraps a failure of the underlying store, including timeouts and
// cancellation before commit.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch err.(type) {
	case ValidationError, NotFoundError, ConflictError, InsufficientBalanceError, StoreError:
		return err
	}
	return StoreError{Op: op, Err: err}
}

// lookupErr maps repo.ErrNotFound to NotFoundError and everything else to StoreError.
func lookupErr(kind, id, op string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Kind: kind, ID: id}
	}
	return storeErr(op, err)
}

// lostRace reports a compare-and-swap that matched no row. status is the
// record's state as re-read inside the same transaction; a failed re-read
// is surfaced as a store error rather than a conflict with no status.
func lostRace(kind, id, op, status string, err error) error {
	if err != nil {
		return storeErr(op, err)
	}
	return ConflictError{Kind: kind, ID: id, Status: status}
}

func positive(field string, v int64) error {
	if v <= 0 {
		return ValidationError{Field: field, Reason: "must be > 0"}
	}
	return nil
}
