package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"

	tbotel "github.com/Strob0t/taskbridge/internal/adapter/otel"
	"github.com/Strob0t/taskbridge/internal/domain/task"
	"github.com/Strob0t/taskbridge/internal/port/messagequeue"
)

// TaskDispatcher accepts decoded requests without blocking the caller.
type TaskDispatcher interface {
	Dispatch(req task.Request)
}

// Consumer pulls tool requests from the broker and hands them to a
// TaskDispatcher. Each delivery is acknowledged once dispatched, since
// processing outlives the broker's redelivery window; undecodable
// deliveries are rejected without requeue.
type Consumer struct {
	broker         messagequeue.Broker
	dispatcher     TaskDispatcher
	subject        string
	connectBackoff time.Duration
	consumeBackoff time.Duration
	metrics        *tbotel.Metrics
	now            func() time.Time
}

// NewConsumer creates a Consumer. connectBackoff applies after connection
// errors, consumeBackoff after any other failure of the consume loop.
func NewConsumer(broker messagequeue.Broker, dispatcher TaskDispatcher, subject string, connectBackoff, consumeBackoff time.Duration) *Consumer {
	return &Consumer{
		broker:         broker,
		dispatcher:     dispatcher,
		subject:        subject,
		connectBackoff: connectBackoff,
		consumeBackoff: consumeBackoff,
		now:            time.Now,
	}
}

// SetMetrics attaches metric instruments; nil disables recording.
func (c *Consumer) SetMetrics(m *tbotel.Metrics) { c.metrics = m }

// Run consumes until ctx is cancelled, reconnecting after every failure.
// The loop is pinned to its own OS thread because the broker stream blocks.
func (c *Consumer) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			slog.Info("broker consumer stopped")
			return
		}

		wait := c.consumeBackoff
		if errors.Is(err, messagequeue.ErrConnection) {
			wait = c.connectBackoff
			slog.Error("broker connection error, reconnecting", "error", err, "backoff", wait)
		} else {
			slog.Error("broker consume loop failed, restarting", "error", err, "backoff", wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			slog.Info("broker consumer stopped")
			return
		case <-t.C:
		}
	}
}

// consume runs one connection's worth of deliveries. It always returns a
// non-nil error unless ctx was cancelled.
func (c *Consumer) consume(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("broker consume loop panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("consume loop panic: %v", r)
		}
	}()

	stream, err := c.broker.Open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	// Closing the stream is what unblocks Next on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	slog.Info("broker consumer listening", "subject", c.subject)
	for {
		d, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, d)
	}
}

func (c *Consumer) handle(ctx context.Context, d messagequeue.Delivery) {
	ctx, span := tbotel.StartConsumeSpan(ctx, c.subject)
	defer span.End()

	payload, err := messagequeue.DecodeToolRequest(d.Data())
	if err != nil {
		span.RecordError(err)
		slog.Warn("rejecting tool request", "error", err, "size", len(d.Data()))
		c.metrics.CountMessage(ctx, false)
		if err := d.Term(); err != nil {
			slog.Error("reject delivery", "error", err)
		}
		return
	}

	req := payload.Request(c.now())
	c.dispatcher.Dispatch(req)
	c.metrics.CountMessage(ctx, true)
	if err := d.Ack(); err != nil {
		slog.Error("ack delivery", "task_id", req.TaskID, "error", err)
	}
}
