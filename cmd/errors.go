package cmd

import (
	"errors"
	"io/fs"

	"github.com/bimmerbailey/ctxlens/internal/parser"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitInputAbsent = 2
)

// exitError attaches a process exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// inputError marks err with ExitInputAbsent when it reports a missing input.
func inputError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, parser.ErrInputNotFound) || errors.Is(err, fs.ErrNotExist) {
		return &exitError{code: ExitInputAbsent, err: err}
	}
	return err
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitFailure
}
