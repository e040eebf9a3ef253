// Package etl defines the error taxonomy shared by the pipeline stages.
//
// Each stage returns a *StageError carrying the stage name and one of the
// sentinel kinds below. StageError unwraps to both the kind and the cause, so
// callers test with errors.Is(err, etl.ErrSchema) and still reach the
// underlying error (e.g. a *pgconn.PgError) with errors.As.
package etl

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrFetch   = errors.New("fetch error")
	ErrParse   = errors.New("parse error")
	ErrSchema  = errors.New("schema error")
	ErrIO      = errors.New("io error")
	ErrStorage = errors.New("storage error")
	ErrConfig  = errors.New("config error")

	// ErrCoercion names unparseable cell values. Coercion is tolerant, so no
	// stage returns it; failed cells become missing instead.
	ErrCoercion = errors.New("coercion error")
)

// Stage identifies the pipeline step that failed.
type Stage string

const (
	StageConfig    Stage = "config"
	StageConnect   Stage = "connect"
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageWriteCSV  Stage = "write_csv"
	StageWriteXLSX Stage = "write_xlsx"
	StageLoad      Stage = "load"
)

// StageError is a failure in one pipeline stage.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Wrap returns err as a StageError. A nil err returns nil. An err that is
// already a StageError is returned unchanged so the innermost stage wins.
func Wrap(stage Stage, kind error, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// Errorf builds a StageError from a formatted message.
func Errorf(stage Stage, kind error, format string, args ...any) error {
	return &StageError{Stage: stage, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or nil if err is not a StageError.
func KindOf(err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return nil
}
