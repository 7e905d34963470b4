package query

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

var (
	// ErrMalformedQuery marks configuration errors: missing keys, mismatched paths, no common path
	ErrMalformedQuery = errors.New("malformed query")
	// ErrNotImplemented marks a query type no compiler exists for
	ErrNotImplemented = errors.New("query type not implemented")
)

// CompileError is returned when a QuerySpec cannot be compiled.
// Step and Query are -1 until the caller places the spec in its algorithm.
type CompileError struct {
	Type   string
	Step   int
	Query  int
	Reason string
	err    error
}

func newCompileError(sentinel error, queryType string, format string, args ...any) *CompileError {
	return &CompileError{
		Type:   queryType,
		Step:   -1,
		Query:  -1,
		Reason: fmt.Sprintf(format, args...),
		err:    sentinel,
	}
}

func (e *CompileError) Error() string {
	path := []string{}
	if e.Step >= 0 {
		path = append(path, fmt.Sprintf("step %d", e.Step))
	}
	if e.Query >= 0 {
		path = append(path, fmt.Sprintf("query %d", e.Query))
	}
	if e.Type != "" {
		path = append(path, fmt.Sprintf("type '%s'", e.Type))
	}

	msg := e.err.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(path) == 0 {
		return msg
	}
	return strings.Join(path, " -> ") + ": " + msg
}

func (e *CompileError) Unwrap() error {
	return e.err
}

// At places the error at a query of an algorithm step
func (e *CompileError) At(step, query int) *CompileError {
	e.Step = step
	e.Query = query
	return e
}

func (e *CompileError) ToHTTPError() *httperror.HTTPError {
	code := http.StatusBadRequest
	if errors.Is(e.err, ErrNotImplemented) {
		code = http.StatusNotImplemented
	}
	return httperror.NewHTTPError(code, e.Error()).
		AddMetaValue("type", e.Type).
		AddMetaValue("step", e.Step).
		AddMetaValue("query", e.Query)
}

// IsCompileError reports whether err is or wraps a CompileError
func IsCompileError(err error) bool {
	var compileErr *CompileError
	return errors.As(err, &compileErr)
}
