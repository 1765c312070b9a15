package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskbridge"

// Metrics holds all taskbridge metric instruments.
type Metrics struct {
	MessagesAccepted metric.Int64Counter
	MessagesRejected metric.Int64Counter
	TasksDispatched  metric.Int64Counter
	TasksCompleted   metric.Int64Counter
	TasksFailed      metric.Int64Counter
	TaskDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.MessagesAccepted, err = meter.Int64Counter("taskbridge.messages.accepted",
		metric.WithDescription("Broker messages decoded and acknowledged"))
	if err != nil {
		return nil, err
	}

	m.MessagesRejected, err = meter.Int64Counter("taskbridge.messages.rejected",
		metric.WithDescription("Broker messages rejected without redelivery"))
	if err != nil {
		return nil, err
	}

	m.TasksDispatched, err = meter.Int64Counter("taskbridge.tasks.dispatched",
		metric.WithDescription("Tasks handed to the scheduler"))
	if err != nil {
		return nil, err
	}

	m.TasksCompleted, err = meter.Int64Counter("taskbridge.tasks.completed",
		metric.WithDescription("Tasks finished with a success result"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("taskbridge.tasks.failed",
		metric.WithDescription("Tasks finished with a failure result"))
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("taskbridge.task.duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordResult counts a finished task and its duration. Safe on a nil receiver.
func (m *Metrics) RecordResult(ctx context.Context, tool, errorKind string, seconds float64) {
	if m == nil {
		return
	}
	toolAttr := metric.WithAttributes(attribute.String("tool", tool))
	if errorKind == "" {
		m.TasksCompleted.Add(ctx, 1, toolAttr)
	} else {
		m.TasksFailed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("error_kind", errorKind),
		))
	}
	m.TaskDuration.Record(ctx, seconds, toolAttr)
}

// CountDispatched counts a task accepted by the scheduler. Safe on a nil receiver.
func (m *Metrics) CountDispatched(ctx context.Context, tool string) {
	if m == nil {
		return
	}
	m.TasksDispatched.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// CountMessage counts an acknowledged or rejected broker message. Safe on a nil receiver.
func (m *Metrics) CountMessage(ctx context.Context, accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.MessagesAccepted.Add(ctx, 1)
		return
	}
	m.MessagesRejected.Add(ctx, 1)
}
