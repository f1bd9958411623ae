package app

import (
	"time"

	"github.com/josephgoksu/taskforge/internal/apperr"
)

// ErrorInfo is the transport view of a failed operation.
type ErrorInfo struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Op      string    `json:"op,omitempty"`
	Scope   string    `json:"scope,omitempty"`
	TaskID  string    `json:"taskId,omitempty"`
	Excerpt string    `json:"excerpt,omitempty"`
	Time    time.Time `json:"time,omitzero"`
}

// Envelope is the {success, data|error} shape every operation returns to the
// transport layer.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// Respond wraps an operation's outcome. A non-nil err wins over data.
func Respond(data any, err error) Envelope {
	if err != nil {
		return Envelope{Success: false, Error: NewErrorInfo(err)}
	}
	return Envelope{Success: true, Data: data}
}

// NewErrorInfo converts err into its transport view. Errors from outside the
// pipeline taxonomy are reported as upstream failures.
func NewErrorInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	e, ok := apperr.As(err)
	if !ok {
		return &ErrorInfo{Kind: string(apperr.KindUpstream), Message: err.Error()}
	}
	return &ErrorInfo{
		Kind:    string(e.Kind),
		Message: err.Error(),
		Op:      e.Op,
		Scope:   e.Scope,
		TaskID:  e.TaskID,
		Excerpt: e.Excerpt,
		Time:    e.Time,
	}
}
