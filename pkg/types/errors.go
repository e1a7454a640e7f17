package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies a mapping error. The leading letter names its class.
type ErrorCode string

// Error codes.
const (
	// P01xx: path syntax errors
	ErrEmptyPath       ErrorCode = "P0101"
	ErrEmptySegment    ErrorCode = "P0102"
	ErrInvalidPathChar ErrorCode = "P0103"

	// E01xx: expression syntax errors
	ErrExprNotClosed     ErrorCode = "E0101"
	ErrExprSyntax        ErrorCode = "E0102"
	ErrStringNotClosed   ErrorCode = "E0103"
	ErrUnexpectedToken   ErrorCode = "E0104"
	ErrEmptyExpression   ErrorCode = "E0105"
	ErrMisplacedWildcard ErrorCode = "E0106"

	// C02xx: configuration errors
	ErrUnknownName          ErrorCode = "C0201"
	ErrUnknownComparison    ErrorCode = "C0202"
	ErrUnknownAggregation   ErrorCode = "C0203"
	ErrMisplacedStage       ErrorCode = "C0204"
	ErrHavingWithoutGroupBy ErrorCode = "C0205"
	ErrInvalidDirection     ErrorCode = "C0206"
	ErrInvalidPagination    ErrorCode = "C0207"
	ErrNoWildcard           ErrorCode = "C0208"
	ErrInvalidStage         ErrorCode = "C0209"
	ErrReservedName         ErrorCode = "C0210"
	ErrDepthExceeded        ErrorCode = "C0211"
	ErrInvalidConfig        ErrorCode = "C0212"

	// T03xx: type coercion errors
	ErrCannotCoerce    ErrorCode = "T0301"
	ErrFilterArguments ErrorCode = "T0302"

	// H04xx: callback errors
	ErrHookFailed     ErrorCode = "H0401"
	ErrOperatorFailed ErrorCode = "H0402"

	// R01xx: resolution errors
	ErrPathNotFound ErrorCode = "R0101"
	ErrPathConflict ErrorCode = "R0102"

	// Z01xx: wildcard zip errors
	ErrZipLength ErrorCode = "Z0101"
)

// Error classes, usable with errors.Is against any *Error.
var (
	ErrPathSyntax    = errors.New("path syntax error")
	ErrSyntax        = errors.New("expression syntax error")
	ErrConfiguration = errors.New("configuration error")
	ErrTypeCoercion  = errors.New("type coercion error")
	ErrCallback      = errors.New("callback error")
	ErrResolution    = errors.New("resolution error")
	ErrZipMismatch   = errors.New("wildcard length mismatch")
)

// Class returns the class sentinel of the code.
func (c ErrorCode) Class() error {
	if c == "" {
		return nil
	}
	switch c[0] {
	case 'P':
		return ErrPathSyntax
	case 'E':
		return ErrSyntax
	case 'C':
		return ErrConfiguration
	case 'T':
		return ErrTypeCoercion
	case 'H':
		return ErrCallback
	case 'R':
		return ErrResolution
	case 'Z':
		return ErrZipMismatch
	}
	return nil
}

// Error is a structured mapping error.
type Error struct {
	Code     ErrorCode
	Message  string
	Position int
	Token    string
	Path     string
	Err      error
}

// NewError creates a new error. Use a negative position when none applies.
func NewError(code ErrorCode, message string, position int) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Position: position,
	}
}

// Errorf creates a new error without position using a format string.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...), -1)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Position >= 0 {
		fmt.Fprintf(&b, " at position %d", e.Position)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the class sentinel of the code, or another *Error with the
// same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == e.Code
	}
	return target != nil && target == e.Code.Class()
}

// WithToken adds token information to the error.
func (e *Error) WithToken(token string) *Error {
	e.Token = token
	return e
}

// WithPath records the key path the error occurred at.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithCause wraps another error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal reports whether err must abort a mapping pass even when errors
// are being collected: path syntax, expression syntax and configuration
// errors describe a broken template, not bad data.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPathSyntax) || errors.Is(err, ErrSyntax) || errors.Is(err, ErrConfiguration)
}

// AggregateError carries every error recorded during a pass run in
// collect mode.
type AggregateError struct {
	Errors []error
}

// NewAggregateError returns nil when errs is empty.
func NewAggregateError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &AggregateError{Errors: append([]error(nil), errs...)}
}

// Error implements the error interface.
func (a *AggregateError) Error() string {
	if len(a.Errors) == 1 {
		return "1 error occurred: " + a.Errors[0].Error()
	}
	parts := make([]string, len(a.Errors))
	for i, err := range a.Errors {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred: %s", len(a.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (a *AggregateError) Unwrap() []error {
	return a.Errors
}
