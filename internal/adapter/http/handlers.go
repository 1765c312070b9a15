package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Strob0t/taskbridge/internal/adapter/ws"
	"github.com/Strob0t/taskbridge/internal/domain/task"
	"github.com/Strob0t/taskbridge/internal/logger"
	"github.com/Strob0t/taskbridge/internal/port/cache"
	"github.com/Strob0t/taskbridge/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Tasks    *service.TaskService
	Hub      *ws.Hub
	Cache    cache.Cache // optional; caches finished poll responses
	CacheTTL time.Duration
}

// submitResponse is returned for an accepted submission.
type submitResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	PollURL string `json:"poll_url"`
	WSURL   string `json:"ws_url"`
}

// SubmitTask handles POST /api/v1/tasks.
func (h *Handlers) SubmitTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.SubmitRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}
	if req.TraceID == "" {
		req.TraceID = logger.TraceID(r.Context())
	}

	id, err := h.Tasks.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "task could not be queued")
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{
		TaskID:  id,
		Status:  string(task.PollRunning),
		PollURL: "/task/" + id,
		WSURL:   "/ws/" + id,
	})
}

// GetTask handles GET /task/{task_id}. Finished tasks never change, so
// their rendered responses are served from the cache once built.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "task_id")
	key := "poll:" + id

	if h.Cache != nil {
		if data, found, err := h.Cache.Get(r.Context(), key); err == nil && found {
			writeRawJSON(w, http.StatusOK, data)
			return
		}
	}

	poll := h.Tasks.Poll(id)
	data, err := json.Marshal(poll)
	if err != nil {
		slog.Error("marshal poll response", "task_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if poll.Status == task.PollDone && h.Cache != nil {
		if err := h.Cache.Set(r.Context(), key, data, h.CacheTTL); err != nil {
			slog.Warn("cache poll response", "task_id", id, "error", err)
		}
	}
	writeRawJSON(w, http.StatusOK, data)
}

// TaskSocket handles GET /ws/{task_id}.
func (h *Handlers) TaskSocket(w http.ResponseWriter, r *http.Request) {
	h.Hub.ServeTask(w, r, urlParam(r, "task_id"))
}

// hitRatioReporter is implemented by caches that track their hit ratio.
type hitRatioReporter interface {
	HitRatio() float64
}

// healthResponse extends the service health with HTTP-layer state.
type healthResponse struct {
	service.Health
	CacheHitRatio *float64 `json:"cache_hit_ratio,omitempty"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Health: h.Tasks.Health()}
	resp.Connections = h.Hub.ConnectionCount()
	if c, ok := h.Cache.(hitRatioReporter); ok {
		ratio := c.HitRatio()
		resp.CacheHitRatio = &ratio
	}
	writeJSON(w, http.StatusOK, resp)
}
