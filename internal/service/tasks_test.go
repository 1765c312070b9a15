package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/taskbridge/internal/domain"
	"github.com/Strob0t/taskbridge/internal/domain/task"
	"github.com/Strob0t/taskbridge/internal/port/messagequeue"
)

func newTaskService(pub *mockPublisher) (*TaskService, *bridge) {
	b := newBridge(&mockAgent{}, testRemoteConfig(map[string]string{"ppt_generator": "http://ppt"}))
	svc := NewTaskService(pub, "tools.request", b.store, b.registry, b.exec, NewScheduler(1, 1), b.breakers)
	return svc, b
}

func TestTaskServiceSubmit(t *testing.T) {
	pub := &mockPublisher{}
	svc, _ := newTaskService(pub)

	id, err := svc.Submit(context.Background(), SubmitRequest{
		ToolName: "ppt_generator",
		Args:     task.Args{{Key: "paper_id", Value: float64(42)}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.HasPrefix(id, "task_") || len(id) != len("task_")+32 {
		t.Fatalf("unexpected task id %q", id)
	}
	if len(pub.data) != 1 || pub.subjects[0] != "tools.request" {
		t.Fatalf("published %d messages to %v", len(pub.data), pub.subjects)
	}

	msg, err := messagequeue.DecodeToolRequest(pub.data[0])
	if err != nil {
		t.Fatalf("published message does not decode: %v", err)
	}
	if msg.TaskID != id || msg.TraceID != id || msg.Tool.Name != "ppt_generator" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if _, ok := msg.SubmittedAt(); !ok {
		t.Fatalf("timestamp %q does not parse", msg.Timestamp)
	}
}

func TestTaskServiceSubmitValidation(t *testing.T) {
	pub := &mockPublisher{}
	svc, b := newTaskService(pub)

	if _, err := svc.Submit(context.Background(), SubmitRequest{ToolName: " "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	b.exec.Finish(context.Background(), task.Succeeded("task_done", json.RawMessage(`{}`)))
	if _, err := svc.Submit(context.Background(), SubmitRequest{TaskID: "task_done", ToolName: "x"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	pub.err = errors.New("nats: no responders")
	if _, err := svc.Submit(context.Background(), SubmitRequest{ToolName: "x"}); err == nil {
		t.Fatal("expected publish error")
	}
	if len(pub.data) != 0 {
		t.Fatalf("unexpected publishes: %d", len(pub.data))
	}
}

func TestTaskServiceSubmitInFlightConflict(t *testing.T) {
	pub := &mockPublisher{}
	svc, _ := newTaskService(pub)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, SubmitRequest{TaskID: "task_live", ToolName: "x"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Submit(ctx, SubmitRequest{TaskID: "task_live", ToolName: "x"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for in-flight id, got %v", err)
	}
	if len(pub.data) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.data))
	}

	// A failed publish frees the id for a retry.
	pub.err = errors.New("nats: no responders")
	if _, err := svc.Submit(ctx, SubmitRequest{TaskID: "task_retry", ToolName: "x"}); err == nil {
		t.Fatal("expected publish error")
	}
	pub.err = nil
	if _, err := svc.Submit(ctx, SubmitRequest{TaskID: "task_retry", ToolName: "x"}); err != nil {
		t.Fatalf("retry after failed publish: %v", err)
	}
}

func TestTaskServiceHealthReportsBroker(t *testing.T) {
	pub := &mockPublisher{}
	svc, _ := newTaskService(pub)

	if h := svc.Health(); h.Broker != BrokerConnected {
		t.Fatalf("broker = %q, want %q", h.Broker, BrokerConnected)
	}
	pub.down = true
	if h := svc.Health(); h.Broker != BrokerDisconnected {
		t.Fatalf("broker = %q, want %q", h.Broker, BrokerDisconnected)
	}
}

func TestTaskServicePollAndHealth(t *testing.T) {
	svc, b := newTaskService(&mockPublisher{})

	if p := svc.Poll("t1"); p.Status != task.PollRunning {
		t.Fatalf("status = %q", p.Status)
	}
	b.exec.Finish(context.Background(), task.Succeeded("t1", json.RawMessage(`{}`)))
	if p := svc.Poll("t1"); p.Status != task.PollDone || p.Result == nil {
		t.Fatalf("unexpected poll %+v", p)
	}

	h := svc.Health()
	if h.Status != "healthy" || h.ActiveTasks != 1 || h.Scheduler {
		t.Fatalf("unexpected health %+v", h)
	}
	if len(h.Tools) != 1 || h.Tools[0] != "ppt_generator" {
		t.Fatalf("tools = %v", h.Tools)
	}
}
