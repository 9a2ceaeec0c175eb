package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/roach88/gelsim/internal/gelspec"
	"github.com/roach88/gelsim/internal/ladder"
	"github.com/roach88/gelsim/internal/simerr"
)

// LoadError represents an error that occurred while loading a gel definition.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadGel compiles a gel definition from a .cue file or from a directory
// holding one CUE package.
func LoadGel(path string, table *ladder.Table) (*gelspec.Definition, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("gel definition not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing gel definition: %v", err)}
	}

	var def *gelspec.Definition
	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		def, err = gelspec.LoadDir(path, table)
		if err != nil {
			return nil, convertCompileError(err)
		}
		return def, nil
	}

	if filepath.Ext(path) != ".cue" {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}
	}
	def, err = gelspec.LoadFile(path, table)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return def, nil
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// convertCompileError converts a gelspec error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *gelspec.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrorCode(err),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
			Err:     err,
		}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error(), Err: err}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load or syntax error
	ErrCodeNotFound    = "E005" // Path or run not found
	ErrCodeStoreFailed = "E006" // Run archive error
	ErrCodeWriteFailed = "E007" // Export or metrics write error

	// Simulation errors
	ErrCodeDimension     = "E101" // Incompatible units
	ErrCodeShape         = "E102" // Sizes and quantities differ in length
	ErrCodeUnknownLadder = "E103" // Unknown weight standard
	ErrCodeInvalidParam  = "E104" // Value out of range
	ErrCodeEmptyGel      = "E105" // No lanes or fragments
	ErrCodeInvalidState  = "E106" // Controller used out of order
)

// ErrorCode maps an error to a CLI error code.
func ErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) && loadErr.Code != "" {
		return loadErr.Code
	}
	var coded *codedError
	if errors.As(err, &coded) {
		return coded.code
	}
	switch simerr.CodeOf(err) {
	case simerr.DimensionMismatch:
		return ErrCodeDimension
	case simerr.ShapeMismatch:
		return ErrCodeShape
	case simerr.NotFound:
		return ErrCodeUnknownLadder
	case simerr.InvalidParameter:
		return ErrCodeInvalidParam
	case simerr.EmptyGel:
		return ErrCodeEmptyGel
	case simerr.InvalidState:
		return ErrCodeInvalidState
	}
	var compileErr *gelspec.CompileError
	if errors.As(err, &compileErr) {
		return ErrCodeLoadFailed
	}
	return ErrCodeGeneric
}

// errorDetails returns the structured details of a simulation error, if any.
func errorDetails(err error) map[string]string {
	var se *simerr.Error
	if errors.As(err, &se) && len(se.Details) > 0 {
		return se.Details
	}
	return nil
}

// lineOf extracts the line number from a CUE position.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}
