// Package a2a defines the port for delegating work to remote agents that
// speak a streaming agent-to-agent protocol.
package a2a

import (
	"context"
	"iter"
)

// Request is one delegated tool invocation sent as a single user message.
type Request struct {
	EndpointURL string
	MessageID   string
	Text        string
	Metadata    map[string]any
}

// Agent streams the flattened text fragments of a remote agent's reply.
// The sequence is finite and not restartable; a retry needs a new call.
// A non-nil error ends the sequence.
type Agent interface {
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}
