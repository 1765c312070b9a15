// Package ws implements the WebSocket adapter pushing task completions to
// the one client waiting on each task.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/taskbridge/internal/domain/task"
)

const writeTimeout = 10 * time.Second

// Close reasons sent to clients.
const (
	reasonDelivered  = "task finished"
	reasonSuperseded = "superseded by a newer subscriber"
)

// Subscriptions is the registry side the hub needs.
type Subscriptions interface {
	Await(taskID string, ch chan *task.Result) bool
	Cancel(taskID string, ch chan *task.Result)
}

// conn wraps a single WebSocket connection waiting on one task.
type conn struct {
	ws     *websocket.Conn
	taskID string
	cancel context.CancelFunc
}

// Hub tracks live task connections.
type Hub struct {
	subs  Subscriptions
	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewHub creates a Hub delivering results from subs.
func NewHub(subs Subscriptions) *Hub {
	return &Hub{
		subs:  subs,
		conns: make(map[*conn]struct{}),
	}
}

// ServeTask upgrades the request and holds the connection until the result
// of taskID has been pushed, the client leaves, or a newer subscriber for
// the same task takes over. Text frames "ping" are answered with "pong".
func (h *Hub) ServeTask(w http.ResponseWriter, r *http.Request, taskID string) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, taskID: taskID, cancel: cancel}
	h.add(c)
	defer h.remove(c)

	slog.Info("websocket connected", "task_id", taskID, "remote", r.RemoteAddr)

	// Read loop: answers pings and detects disconnects.
	go func() {
		defer cancel()
		for {
			typ, data, err := ws.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageText && string(data) == "ping" {
				if err := write(ctx, ws, []byte("pong")); err != nil {
					return
				}
			}
		}
	}()

	ch := make(chan *task.Result, 1)
	h.subs.Await(taskID, ch)

	select {
	case res, ok := <-ch:
		if !ok {
			slog.Info("websocket subscriber replaced", "task_id", taskID)
			_ = ws.Close(websocket.StatusNormalClosure, reasonSuperseded)
			return
		}
		data, err := json.Marshal(task.NewCompletion(res))
		if err != nil {
			slog.Error("websocket marshal failed", "task_id", taskID, "error", err)
			_ = ws.Close(websocket.StatusInternalError, "")
			return
		}
		if err := write(ctx, ws, data); err != nil {
			slog.Debug("websocket write failed", "task_id", taskID, "error", err)
			return
		}
		_ = ws.Close(websocket.StatusNormalClosure, reasonDelivered)
	case <-ctx.Done():
		h.subs.Cancel(taskID, ch)
		slog.Info("websocket disconnected before completion", "task_id", taskID)
		_ = ws.Close(websocket.StatusGoingAway, "")
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func write(ctx context.Context, ws *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *Hub) add(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
	}
}
