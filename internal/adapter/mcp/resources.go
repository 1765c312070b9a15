package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const healthURI = "taskbridge://health"

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			healthURI,
			"Bridge Health",
			mcplib.WithResourceDescription("Active tasks, subscribers and breaker states"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleHealthResource,
	)
}

func (s *Server) handleHealthResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	text := `{"error":"task service not configured"}`
	if s.deps.Tasks != nil {
		data, err := json.Marshal(s.deps.Tasks.Health())
		if err != nil {
			return nil, err
		}
		text = string(data)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}
