// Package localtool defines the port for tools executed in-process.
package localtool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Strob0t/taskbridge/internal/domain/task"
)

// Tool is a tool that runs inside the bridge process and returns its
// structured payload directly.
type Tool interface {
	// Name is the tool_name requests use to select this tool.
	Name() string

	// Timeout bounds a single Run; zero means the tool is unbounded.
	Timeout() time.Duration

	// Run executes the tool. The returned payload must be valid JSON.
	Run(ctx context.Context, args task.Args) (json.RawMessage, error)
}
