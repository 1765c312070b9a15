package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validation errors. All of them are permanent: the message can never be
// processed and must not be redelivered.
var (
	ErrInvalidJSON     = errors.New("invalid JSON")
	ErrUnknownType     = errors.New("unrecognized message type")
	ErrUnsupportedVers = errors.New("unsupported message version")
	ErrMissingField    = errors.New("missing required field")
)

// DecodeToolRequest validates data against the tool request schema and
// decodes it. Any returned error means the message is poison.
func DecodeToolRequest(data []byte) (*ToolRequestPayload, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}

	var p ToolRequestPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if p.Type != TypeToolRequest {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, p.Type)
	}
	if p.Version != "" && p.Version != VersionToolRequest {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVers, p.Version)
	}
	if p.TaskID == "" {
		return nil, fmt.Errorf("%w: task_id", ErrMissingField)
	}
	if p.Tool.Name == "" {
		return nil, fmt.Errorf("%w: tool.name", ErrMissingField)
	}

	return &p, nil
}
