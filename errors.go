package imcs

import (
	"errors"
	"fmt"

	"github.com/hupe1980/imcs/internal/errs"
	"github.com/hupe1980/imcs/internal/page"
	"github.com/hupe1980/imcs/internal/resource"
	"github.com/hupe1980/imcs/internal/wire"
)

// Error is the typed failure every store, operator and coordinator error
// matches. Use errors.Is with the sentinels below to test for a category.
type Error = errs.Error

var (
	ErrDataTypeMismatch       = errs.ErrDataTypeMismatch
	ErrFeatureNotSupported    = errs.ErrFeatureNotSupported
	ErrOutOfMemory            = errs.ErrOutOfMemory
	ErrNullNotAllowed         = errs.ErrNullNotAllowed
	ErrStringTooLong          = errs.ErrStringTooLong
	ErrSyntaxError            = errs.ErrSyntaxError
	ErrInvalidParameter       = errs.ErrInvalidParameter
	ErrStoreNotInitialized    = errs.ErrStoreNotInitialized
	ErrDictionaryFull         = errs.ErrDictionaryFull
	ErrDictionaryCodeNotFound = errs.ErrDictionaryCodeNotFound
	ErrColumnNotFound         = errs.ErrColumnNotFound
)

var (
	// ErrTxDone is returned by operations on a committed or rolled back transaction.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")

	// ErrTxReadOnly is returned when a view transaction tries to modify the store.
	ErrTxReadOnly = errors.New("transaction is read-only")

	// ErrCorrupt is returned when persisted pages or snapshot blocks fail
	// their checksum or do not decode.
	ErrCorrupt = errors.New("corrupt data")
)

// ColumnError attaches the operation and column key to a failure.
//
// The original underlying error can be accessed via errors.Unwrap, so
// errors.Is(err, ErrDataTypeMismatch) and friends keep working.
type ColumnError struct {
	Op    string
	Key   string
	cause error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.cause)
}

func (e *ColumnError) Unwrap() error { return e.cause }

func columnError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &ColumnError{Op: op, Key: key, cause: translateError(err)}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Budget exhaustion outside the arena still reports as OutOfMemory.
	if errors.Is(err, resource.ErrBudgetExceeded) && !errors.Is(err, errs.ErrOutOfMemory) {
		return errs.OutOfMemory(errs.ResourceArena, err)
	}

	if errors.Is(err, page.ErrChecksum) || errors.Is(err, wire.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return err
}
