// Package errors provides the error taxonomy for the artifact service.
// Errors carry a code, the failing operation, context fields and a short stack.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Code categorizes an error for callers and for the HTTP layer.
type Code string

const (
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeInvalidSlug   Code = "INVALID_SLUG"
	CodeNotFound      Code = "NOT_FOUND"
	CodePermission    Code = "PERMISSION_ERROR"
	CodeUnavailable   Code = "UNAVAILABLE"
	CodeFailedPrecond Code = "FAILED_PRECONDITION"
	CodeForbidden     Code = "FORBIDDEN"
)

// Error is the service error type.
type Error struct {
	// Code is the error category.
	Code Code
	// Message is the human-readable message.
	Message string
	// Op is the operation that failed (e.g. "jobs.create").
	Op string
	// Err is the underlying cause.
	Err error
	// Fields holds extra context, exposed as response details.
	Fields map[string]any
	// Stack is captured at creation.
	Stack []Frame
}

// Frame is a single stack frame.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: CodeNotFound}) works.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithField adds a context field.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// HTTPStatus maps the code to a response status. Permission problems are a
// server configuration issue, so they map to 500 rather than 403.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeValidation, CodeInvalidSlug:
		return 400
	case CodeForbidden:
		return 403
	case CodeNotFound:
		return 404
	case CodeFailedPrecond:
		return 412
	case CodeUnavailable:
		return 503
	default:
		return 500
	}
}

// StackTrace formats the captured stack.
func (e *Error) StackTrace() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range e.Stack {
		fmt.Fprintf(&b, "  %s:%d %s\n", f.File, f.Line, f.Function)
	}
	return b.String()
}

// New creates an error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Stack: captureStack(2)}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Stack: captureStack(2)}
}

// Wrap adds context to err. The code of a wrapped *Error is preserved;
// anything else becomes CodeInternal.
func Wrap(err error, op string, message string) *Error {
	if err == nil {
		return nil
	}

	code := CodeInternal
	var fields map[string]any
	var e *Error
	if errors.As(err, &e) {
		code = e.Code
		fields = e.Fields
	}

	return &Error{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
		Fields:  fields,
		Stack:   captureStack(2),
	}
}

// WrapWithCode wraps err forcing a code.
func WrapWithCode(err error, code Code, op string, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Op: op, Err: err, Stack: captureStack(2)}
}

// InvalidSlug reports a caller-supplied slug outside the allowed pattern.
func InvalidSlug(raw string, minLen, maxLen int) *Error {
	return Newf(CodeInvalidSlug, "invalid slug: only [a-z0-9-] allowed, length %d..%d", minLen, maxLen).
		WithField("slug", raw)
}

// NotFound reports a missing resource.
func NotFound(resource string, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, id)).
		WithField("resource", resource).
		WithField("id", id)
}

// Validation reports a bad request field.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// ValidationField reports a bad value for a specific field.
func ValidationField(field string, message string) *Error {
	return New(CodeValidation, message).WithField("field", field)
}

// Permission reports missing capability on the configured identity.
func Permission(op string, err error) *Error {
	return WrapWithCode(err, CodePermission, op, "storage identity lacks required permission")
}

// Unavailable reports an unreachable backend.
func Unavailable(op string, service string, err error) *Error {
	return WrapWithCode(err, CodeUnavailable, op, "service unavailable: "+service).
		WithField("service", service)
}

// GetCode extracts the code, defaulting to CodeInternal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus extracts the HTTP status, defaulting to 500.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return 500
}

// GetFields extracts the context fields.
func GetFields(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) && e.Fields != nil {
		return e.Fields
	}
	return nil
}

// GetMessage returns the outermost message of an *Error, or err.Error().
func GetMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsCode checks the error code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

func IsPermission(err error) bool {
	return IsCode(err, CodePermission)
}

func captureStack(skip int) []Frame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])

	frames := make([]Frame, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := callersFrames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			frames = append(frames, Frame{File: frame.File, Line: frame.Line, Function: frame.Function})
		}
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
