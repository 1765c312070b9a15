package messagequeue

import (
	"time"

	"github.com/Strob0t/taskbridge/internal/domain/task"
)

// Message types and versions accepted from the queue.
const (
	TypeToolRequest    = "tool_request"
	VersionToolRequest = "1.0"
)

// ToolRequestPayload is the schema of a tool request message:
//
//	{type, version, task_id, trace_id, timestamp, tool: {name, args}}
type ToolRequestPayload struct {
	Type      string   `json:"type"`
	Version   string   `json:"version"`
	TaskID    string   `json:"task_id"`
	TraceID   string   `json:"trace_id"`
	Timestamp string   `json:"timestamp"`
	Tool      ToolSpec `json:"tool"`
}

// ToolSpec names the tool and carries its arguments in wire order.
type ToolSpec struct {
	Name string    `json:"name"`
	Args task.Args `json:"args"`
}

// timestampLayouts are tried in order; producers emit ISO-8601 with or
// without a zone offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// SubmittedAt parses Timestamp. ok is false when it is absent or unparseable.
func (p *ToolRequestPayload) SubmittedAt() (t time.Time, ok bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, p.Timestamp); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Request converts the payload to a task.Request. A missing trace ID
// defaults to the task ID; an unparseable timestamp defaults to receivedAt.
func (p *ToolRequestPayload) Request(receivedAt time.Time) task.Request {
	submitted, ok := p.SubmittedAt()
	if !ok {
		submitted = receivedAt
	}
	traceID := p.TraceID
	if traceID == "" {
		traceID = p.TaskID
	}
	return task.Request{
		TaskID:      p.TaskID,
		ToolName:    p.Tool.Name,
		Args:        p.Tool.Args,
		TraceID:     traceID,
		SubmittedAt: submitted,
	}
}

// NewToolRequest builds a tool request message stamped with now.
func NewToolRequest(taskID, traceID, toolName string, args task.Args, now time.Time) ToolRequestPayload {
	return ToolRequestPayload{
		Type:      TypeToolRequest,
		Version:   VersionToolRequest,
		TaskID:    taskID,
		TraceID:   traceID,
		Timestamp: now.Format(time.RFC3339Nano),
		Tool:      ToolSpec{Name: toolName, Args: args},
	}
}
