package service

import (
	"context"
	"log/slog"

	tbotel "github.com/Strob0t/taskbridge/internal/adapter/otel"
	"github.com/Strob0t/taskbridge/internal/domain/task"
)

// Dispatcher hands decoded requests from the broker goroutine to the
// Scheduler. It never blocks and never buffers a request it cannot
// schedule: such a request is finished at once with dispatch_unavailable.
type Dispatcher struct {
	sched   *Scheduler
	exec    *Executor
	metrics *tbotel.Metrics
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(sched *Scheduler, exec *Executor) *Dispatcher {
	return &Dispatcher{sched: sched, exec: exec}
}

// SetMetrics attaches metric instruments; nil disables recording.
func (d *Dispatcher) SetMetrics(m *tbotel.Metrics) { d.metrics = m }

// Dispatch schedules req for execution and returns immediately.
func (d *Dispatcher) Dispatch(req task.Request) {
	err := d.sched.Submit(func(ctx context.Context) {
		d.exec.Execute(ctx, req)
	})
	if err == nil {
		d.metrics.CountDispatched(context.Background(), req.ToolName)
		slog.Debug("task dispatched", "task_id", req.TaskID, "tool", req.ToolName)
		return
	}

	slog.Warn("task not dispatched", "task_id", req.TaskID, "tool", req.ToolName, "error", err)
	r := task.Failed(req.TaskID, task.KindDispatchUnavailable, "task could not be scheduled: "+err.Error())
	d.metrics.RecordResult(context.Background(), req.ToolName, string(task.KindDispatchUnavailable), 0)
	d.exec.Finish(context.Background(), r)
}
