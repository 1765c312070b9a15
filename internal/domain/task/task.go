// Package task defines the tool task entities exchanged between the queue,
// the executor and waiting clients.
package task

import (
	"encoding/json"
	"time"
)

// ErrorKind classifies why a task failed.
type ErrorKind string

const (
	KindUnknownTool         ErrorKind = "unknown_tool"
	KindRemoteUnavailable   ErrorKind = "remote_unavailable"
	KindMalformedPayload    ErrorKind = "malformed_payload"
	KindMissingPayload      ErrorKind = "missing_payload"
	KindDispatchUnavailable ErrorKind = "dispatch_unavailable"
	KindToolFailed          ErrorKind = "tool_failed"
)

// Request is one unit of requested tool work. It is immutable once enqueued.
type Request struct {
	TaskID      string    `json:"task_id"`
	ToolName    string    `json:"tool_name"`
	Args        Args      `json:"args"`
	TraceID     string    `json:"trace_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Failure describes a task that terminated without a payload.
type Failure struct {
	Kind    ErrorKind `json:"error_kind"`
	Message string    `json:"message"`
}

// Result is the terminal outcome of a task. Exactly one of Payload or
// Failure is set. A Result is created once and never mutated.
type Result struct {
	TaskID      string          `json:"task_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Failure     *Failure        `json:"failure,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Succeeded returns a success result carrying payload.
func Succeeded(taskID string, payload json.RawMessage) *Result {
	return &Result{
		TaskID:      taskID,
		Payload:     payload,
		CompletedAt: time.Now().UTC(),
	}
}

// Failed returns a failure result of the given kind.
func Failed(taskID string, kind ErrorKind, message string) *Result {
	return &Result{
		TaskID:      taskID,
		Failure:     &Failure{Kind: kind, Message: message},
		CompletedAt: time.Now().UTC(),
	}
}

// OK reports whether the task succeeded.
func (r *Result) OK() bool {
	return r.Failure == nil
}

// PollStatus is the coarse state reported to polling clients.
type PollStatus string

const (
	PollRunning PollStatus = "running"
	PollDone    PollStatus = "done"
)

// Poll is the response shape of a result lookup.
type Poll struct {
	TaskID  string     `json:"task_id"`
	Status  PollStatus `json:"status"`
	Result  *Result    `json:"result,omitempty"`
	Message string     `json:"message,omitempty"`
}

// NewPoll builds a poll response; r may be nil while the task is running.
func NewPoll(taskID string, r *Result) Poll {
	if r == nil {
		return Poll{TaskID: taskID, Status: PollRunning, Message: "task is still running"}
	}
	return Poll{TaskID: taskID, Status: PollDone, Result: r}
}
