// Package apperr defines the error taxonomy shared by the pipeline.
//
// Every error raised by the core carries the operation name, scope, task id and a
// timestamp so a failed call can be reconstructed from the audit log alone.
package apperr

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindParse      Kind = "parse"
	KindConflict   Kind = "structural_conflict"
	KindUpstream   Kind = "upstream"
)

// Sentinels for errors.Is matching against a Kind.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrParse      = errors.New("parse error")
	ErrConflict   = errors.New("structural conflict")
	ErrUpstream   = errors.New("upstream error")
)

// ExcerptLimit bounds the diagnostic excerpt attached to parse errors.
const ExcerptLimit = 500

// Error is the single concrete error type raised by the pipeline.
type Error struct {
	Kind    Kind      `json:"kind"`
	Op      string    `json:"op"`
	Scope   string    `json:"scope,omitempty"`
	TaskID  string    `json:"taskId,omitempty"`
	Time    time.Time `json:"time"`
	Msg     string    `json:"message"`
	Excerpt string    `json:"excerpt,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Scope != "" {
		fmt.Fprintf(&b, " [%s", e.Scope)
		if e.TaskID != "" {
			fmt.Fprintf(&b, "#%s", e.TaskID)
		}
		b.WriteString("]")
	} else if e.TaskID != "" {
		fmt.Fprintf(&b, " [#%s]", e.TaskID)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// In attaches scope and task identity. The receiver is modified and returned.
func (e *Error) In(scope string, taskID any) *Error {
	e.Scope = scope
	if taskID != nil {
		if s := fmt.Sprint(taskID); s != "" && s != "0" {
			e.TaskID = s
		}
	}
	return e
}

func sentinel(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindParse:
		return ErrParse
	case KindConflict:
		return ErrConflict
	case KindUpstream:
		return ErrUpstream
	default:
		return nil
	}
}

func newError(kind Kind, op string, cause error, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Time: time.Now().UTC(),
		Msg:  fmt.Sprintf(format, args...),
		Err:  cause,
	}
}

// Validation reports bad input shape or a missing required field.
func Validation(op, format string, args ...any) *Error {
	return newError(KindValidation, op, nil, format, args...)
}

// NotFound reports a referenced task, subtask or scope that does not exist.
func NotFound(op, format string, args ...any) *Error {
	return newError(KindNotFound, op, nil, format, args...)
}

// Conflict reports a cycle, self-dependency or duplicate identifier.
func Conflict(op, format string, args ...any) *Error {
	return newError(KindConflict, op, nil, format, args...)
}

// Upstream wraps a failed Generation Adapter or Persistence call.
func Upstream(op string, cause error, format string, args ...any) *Error {
	return newError(KindUpstream, op, cause, format, args...)
}

// Parse reports AI text that failed every recovery stage or schema validation.
// The cleaned text is kept as a truncated excerpt.
func Parse(op string, cause error, cleaned string, format string, args ...any) *Error {
	e := newError(KindParse, op, cause, format, args...)
	e.Excerpt = Truncate(cleaned, ExcerptLimit)
	return e
}

// Truncate shortens s to at most n bytes, marking the cut. The cut backs off to
// a rune boundary so multibyte characters are never split.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "... [truncated]"
}

// KindOf returns the kind of the first *Error in err's chain, or "" when none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
