package gelspec

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a problem in a gel definition. Pos is the CUE source
// position when one is known; Err is set when the cause is a simulation
// error (unknown ladder, bad quantity) rather than a CUE one.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

// formatCUEError turns the first CUE error into a CompileError located at
// its source position. Field is the CUE path of the offending value, or "cue"
// for syntax errors that have none.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) == 0 {
		return err
	}
	field := strings.Join(first.Path(), ".")
	if field == "" {
		field = "cue"
	}
	format, args := first.Msg()
	return &CompileError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Pos:     positions[0],
	}
}

// fieldError reports a simulation error raised while building field.
func fieldError(field string, pos token.Pos, err error) *CompileError {
	return &CompileError{Field: field, Message: err.Error(), Pos: pos, Err: err}
}
