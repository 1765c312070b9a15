// Package a2a delegates tool work to remote agents over the A2A streaming
// protocol.
package a2a

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"

	a2aport "github.com/Strob0t/taskbridge/internal/port/a2a"
)

// Client resolves an agent's card per call and streams its reply.
type Client struct{}

// NewClient creates a Client.
func NewClient() *Client { return &Client{} }

// Stream sends req as a single user message and yields the text carried by
// status updates, artifact updates and direct messages, in arrival order.
func (c *Client) Stream(ctx context.Context, req a2aport.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		card, err := agentcard.DefaultResolver.Resolve(ctx, req.EndpointURL)
		if err != nil {
			yield("", fmt.Errorf("resolve agent card %s: %w", req.EndpointURL, err))
			return
		}
		client, err := a2aclient.NewFromCard(ctx, card)
		if err != nil {
			yield("", fmt.Errorf("a2a client %s: %w", req.EndpointURL, err))
			return
		}

		msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: req.Text})
		if req.MessageID != "" {
			msg.ID = req.MessageID
		}
		msg.Metadata = req.Metadata

		slog.Debug("a2a stream started", "endpoint", req.EndpointURL, "agent", card.Name, "message_id", msg.ID)
		for event, err := range client.SendStreamingMessage(ctx, &a2a.MessageSendParams{Message: msg}) {
			if err != nil {
				yield("", fmt.Errorf("a2a stream %s: %w", req.EndpointURL, err))
				return
			}
			text := eventText(event)
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// eventText flattens the text parts of one stream event. Whole tasks are
// skipped; their content already arrived through the update events.
func eventText(event a2a.Event) string {
	switch ev := event.(type) {
	case *a2a.TaskStatusUpdateEvent:
		if ev.Status.Message != nil {
			return partsText(ev.Status.Message.Parts)
		}
	case *a2a.TaskArtifactUpdateEvent:
		if ev.Artifact != nil {
			return partsText(ev.Artifact.Parts)
		}
	case *a2a.Message:
		return partsText(ev.Parts)
	}
	return ""
}

func partsText(parts []a2a.Part) string {
	var b strings.Builder
	for _, p := range parts {
		switch tp := p.(type) {
		case a2a.TextPart:
			b.WriteString(tp.Text)
		case *a2a.TextPart:
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}
