// Package repository defines the error taxonomy shared by every store and
// by the services built on top of them.  Each failure carries a Kind so that
// handlers can translate it into an HTTP status without inspecting driver
// errors.  Callers match kinds with errors.Is against the sentinel values
// below, e.g. errors.Is(err, ErrNotFound).
package repository

import (
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// Kind classifies a failure.
type Kind int

const (
	KindStore Kind = iota
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "store"
	}
}

var (
	// ErrValidation is returned when a required field is missing or a value
	// is out of range.  Handlers translate it into an HTTP 400 response.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a referenced entity does not exist.
	// Handlers translate it into an HTTP 404 response.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would break a uniqueness or
	// referential rule, such as deleting a reader who still has orders.
	// Handlers translate it into an HTTP 409 response.
	ErrConflict = errors.New("conflict")
	// ErrStore marks an unexpected persistence failure (HTTP 500).
	ErrStore = errors.New("store failure")
)

// Error is a classified failure with a human readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindValidation:
		return target == ErrValidation
	case KindNotFound:
		return target == ErrNotFound
	case KindConflict:
		return target == ErrConflict
	default:
		return target == ErrStore
	}
}

// Validationf reports invalid input.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf reports a missing entity.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf reports a write refused because of existing state.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err; unclassified errors are store failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

// Message returns the human readable part of a classified error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}

// storeErr classifies a driver error.  Unique and foreign key violations
// become conflicts; everything else is a store failure.  Errors that are
// already classified pass through unchanged.
func storeErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case isDuplicate(err):
		return &Error{Kind: KindConflict, Msg: msg + ": duplicate value", Err: err}
	case isForeignKey(err):
		return &Error{Kind: KindConflict, Msg: msg + ": referenced record missing or still in use", Err: err}
	}
	return &Error{Kind: KindStore, Msg: msg, Err: errors.WithStack(err)}
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1451 || me.Number == 1452
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23503"
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
