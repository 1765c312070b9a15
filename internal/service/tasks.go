package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/taskbridge/internal/domain"
	"github.com/Strob0t/taskbridge/internal/domain/task"
	"github.com/Strob0t/taskbridge/internal/port/messagequeue"
	"github.com/Strob0t/taskbridge/internal/resilience"
)

// SubmitRequest is a caller-initiated tool request.
type SubmitRequest struct {
	TaskID   string    `json:"task_id,omitempty"`
	TraceID  string    `json:"trace_id,omitempty"`
	ToolName string    `json:"tool_name"`
	Args     task.Args `json:"args"`
}

// Health summarises the bridge for liveness checks.
type Health struct {
	Status      string            `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Broker      string            `json:"broker"`
	ActiveTasks int               `json:"active_tasks"`
	Subscribers int               `json:"subscribers"`
	Connections int               `json:"connections"`
	Scheduler   bool              `json:"scheduler_running"`
	Tools       []string          `json:"tools"`
	Breakers    map[string]string `json:"breakers,omitempty"`
}

// Broker states reported by Health.
const (
	BrokerConnected    = "connected"
	BrokerDisconnected = "disconnected"
)

// TaskService is the read and submit surface used by the HTTP and MCP
// adapters. Submissions go through the broker like any other producer's.
type TaskService struct {
	pub      messagequeue.Publisher
	subject  string
	store    *ResultStore
	registry *Registry
	exec     *Executor
	sched    *Scheduler
	breakers *resilience.Breakers
	now      func() time.Time

	// submitted holds IDs published through Submit, so a caller-chosen ID
	// still in flight is refused like a finished one. Tasks produced by
	// other publishers are only known once their result is stored.
	mu        sync.Mutex
	submitted map[string]struct{}
}

// NewTaskService creates a TaskService publishing to subject.
func NewTaskService(
	pub messagequeue.Publisher,
	subject string,
	store *ResultStore,
	registry *Registry,
	exec *Executor,
	sched *Scheduler,
	breakers *resilience.Breakers,
) *TaskService {
	return &TaskService{
		pub:      pub,
		subject:  subject,
		store:    store,
		registry: registry,
		exec:     exec,
		sched:    sched,
		breakers:  breakers,
		now:       time.Now,
		submitted: make(map[string]struct{}),
	}
}

// NewTaskID returns a fresh task identifier of the form task_<32 hex>.
func NewTaskID() string {
	return hexID("task_")
}

func hexID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Submit publishes req as a tool request message and returns its task ID.
func (s *TaskService) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if strings.TrimSpace(req.ToolName) == "" {
		return "", fmt.Errorf("tool_name is required: %w", domain.ErrValidation)
	}
	taskID := req.TaskID
	if taskID == "" {
		taskID = NewTaskID()
	}
	if !s.claim(taskID) {
		return "", fmt.Errorf("task %s: %w", taskID, domain.ErrConflict)
	}
	traceID := req.TraceID
	if traceID == "" {
		traceID = taskID
	}

	msg := messagequeue.NewToolRequest(taskID, traceID, req.ToolName, req.Args, s.now())
	data, err := json.Marshal(msg)
	if err != nil {
		s.release(taskID)
		return "", fmt.Errorf("marshal tool request: %w", err)
	}
	if err := s.pub.Publish(ctx, s.subject, data); err != nil {
		s.release(taskID)
		return "", fmt.Errorf("publish tool request %s: %w", taskID, err)
	}
	return taskID, nil
}

// claim reserves taskID unless it is finished or already submitted.
func (s *TaskService) claim(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, done := s.store.Get(taskID); done {
		// The store now answers for this ID.
		delete(s.submitted, taskID)
		return false
	}
	if _, pending := s.submitted[taskID]; pending {
		return false
	}
	s.submitted[taskID] = struct{}{}
	return true
}

func (s *TaskService) release(taskID string) {
	s.mu.Lock()
	delete(s.submitted, taskID)
	s.mu.Unlock()
}

// Poll returns the current state of taskID. Unknown tasks are reported as
// running; the bridge cannot tell an unknown ID from one still queued.
func (s *TaskService) Poll(taskID string) task.Poll {
	r, _ := s.store.Get(taskID)
	return task.NewPoll(taskID, r)
}

// Health reports counters and breaker states.
func (s *TaskService) Health() Health {
	tools := s.exec.Tools()
	sort.Strings(tools)
	broker := BrokerConnected
	if !s.pub.Connected() {
		broker = BrokerDisconnected
	}
	return Health{
		Status:      "healthy",
		Timestamp:   s.now(),
		Broker:      broker,
		ActiveTasks: s.store.Len(),
		Subscribers: s.registry.Waiting(),
		Scheduler:   s.sched.Running(),
		Tools:       tools,
		Breakers:    s.breakers.States(),
	}
}
