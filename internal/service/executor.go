package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	tbotel "github.com/Strob0t/taskbridge/internal/adapter/otel"
	"github.com/Strob0t/taskbridge/internal/config"
	"github.com/Strob0t/taskbridge/internal/domain"
	"github.com/Strob0t/taskbridge/internal/domain/task"
	"github.com/Strob0t/taskbridge/internal/logger"
	a2aport "github.com/Strob0t/taskbridge/internal/port/a2a"
	"github.com/Strob0t/taskbridge/internal/port/localtool"
	"github.com/Strob0t/taskbridge/internal/resilience"
)

var errEmptyReply = errors.New("remote agent returned no text")

// Executor runs a tool request and finishes it with exactly one result:
// the result is stored first and then pushed to a waiting subscriber.
type Executor struct {
	local    map[string]localtool.Tool
	remotes  map[string]string
	agent    a2aport.Agent
	agg      *Aggregator
	breakers *resilience.Breakers
	timeout  time.Duration
	language string

	store    *ResultStore
	registry *Registry
	metrics  *tbotel.Metrics
	now      func() time.Time
}

// NewExecutor creates an Executor. Local tools take precedence over a
// remote mapping with the same name.
func NewExecutor(
	cfg config.Remote,
	breakers *resilience.Breakers,
	agent a2aport.Agent,
	store *ResultStore,
	registry *Registry,
	tools ...localtool.Tool,
) *Executor {
	local := make(map[string]localtool.Tool, len(tools))
	for _, t := range tools {
		local[t.Name()] = t
	}
	remotes := make(map[string]string, len(cfg.AgentURLs))
	for name, url := range cfg.AgentURLs {
		if url != "" {
			remotes[name] = url
		}
	}
	return &Executor{
		local:    local,
		remotes:  remotes,
		agent:    agent,
		agg:      NewAggregator(cfg.FenceBegin, cfg.FenceEnd, cfg.ExcerptLen),
		breakers: breakers,
		timeout:  cfg.Timeout,
		language: cfg.Language,
		store:    store,
		registry: registry,
		now:      time.Now,
	}
}

// SetMetrics attaches metric instruments; nil disables recording.
func (e *Executor) SetMetrics(m *tbotel.Metrics) { e.metrics = m }

// Tools lists the names of every tool the executor can run.
func (e *Executor) Tools() []string {
	names := make([]string, 0, len(e.local)+len(e.remotes))
	for n := range e.local {
		names = append(names, n)
	}
	for n := range e.remotes {
		if _, shadowed := e.local[n]; !shadowed {
			names = append(names, n)
		}
	}
	return names
}

// Execute runs req to completion. It never returns an error: every outcome,
// including a panicking tool, ends as a stored result.
func (e *Executor) Execute(ctx context.Context, req task.Request) {
	ctx = logger.WithTraceID(ctx, req.TraceID)
	ctx, span := tbotel.StartTaskSpan(ctx, req.TaskID, req.TraceID, req.ToolName)
	defer span.End()

	started := e.now()
	r := e.run(ctx, req)
	e.metrics.RecordResult(ctx, req.ToolName, string(failureKind(r)), e.now().Sub(started).Seconds())
	e.Finish(ctx, r)
}

// Finish stores r and then publishes it to the task's subscriber. A second
// result for the same task is dropped and logged; the first one stands.
func (e *Executor) Finish(ctx context.Context, r *task.Result) {
	log := logger.Ctx(ctx, slog.Default())
	if r.CompletedAt.IsZero() {
		r.CompletedAt = e.now()
	}

	if err := e.store.Put(r); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Error("duplicate completion ignored", "task_id", r.TaskID)
			return
		}
		log.Error("store result", "task_id", r.TaskID, "error", err)
		return
	}

	pushed := e.registry.Publish(r.TaskID)
	if r.OK() {
		log.Info("task completed", "task_id", r.TaskID, "pushed", pushed)
	} else {
		log.Warn("task failed", "task_id", r.TaskID, "error_kind", r.Failure.Kind,
			"message", r.Failure.Message, "pushed", pushed)
	}
}

func (e *Executor) run(ctx context.Context, req task.Request) *task.Result {
	if tool, ok := e.local[req.ToolName]; ok {
		return e.runLocal(ctx, tool, req)
	}
	if url, ok := e.remotes[req.ToolName]; ok {
		return e.runRemote(ctx, url, req)
	}
	return task.Failed(req.TaskID, task.KindUnknownTool, "unknown tool: "+req.ToolName)
}

func (e *Executor) runLocal(ctx context.Context, tool localtool.Tool, req task.Request) (r *task.Result) {
	if d := tool.Timeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			slog.Error("local tool panicked", "tool", req.ToolName, "panic", p, "stack", string(debug.Stack()))
			r = task.Failed(req.TaskID, task.KindToolFailed, fmt.Sprintf("tool %s panicked: %v", req.ToolName, p))
		}
	}()

	payload, err := tool.Run(ctx, req.Args)
	if err != nil {
		return task.Failed(req.TaskID, task.KindToolFailed, fmt.Sprintf("tool %s: %v", req.ToolName, err))
	}
	if !json.Valid(payload) {
		return task.Failed(req.TaskID, task.KindToolFailed, fmt.Sprintf("tool %s returned invalid JSON", req.ToolName))
	}
	return task.Succeeded(req.TaskID, payload)
}

func (e *Executor) runRemote(ctx context.Context, url string, req task.Request) *task.Result {
	ctx, span := tbotel.StartDelegationSpan(ctx, req.ToolName, url)
	defer span.End()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	msg := a2aport.Request{
		EndpointURL: url,
		MessageID:   uuid.New().String(),
		Text:        delegationText(req),
		Metadata: map[string]any{
			"task_id":  req.TaskID,
			"trace_id": req.TraceID,
			"language": e.language,
			"args":     req.Args,
		},
	}

	var text string
	err := e.breakers.For(req.ToolName).Execute(func() error {
		var err error
		text, err = e.collect(ctx, e.agent.Stream(ctx, msg))
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return errEmptyReply
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return task.Failed(req.TaskID, task.KindRemoteUnavailable,
			fmt.Sprintf("remote agent %s unavailable: %v", req.ToolName, err))
	}
	return e.agg.Extract(req.TaskID, text)
}

// collect drains fragments until the stream ends or ctx expires. On
// expiry the stream is abandoned and its goroutine left to unwind.
func (e *Executor) collect(ctx context.Context, fragments iter.Seq2[string, error]) (string, error) {
	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := e.agg.Collect(fragments)
		done <- outcome{text, err}
	}()

	select {
	case o := <-done:
		return o.text, o.err
	case <-ctx.Done():
		return "", fmt.Errorf("remote call abandoned: %w", ctx.Err())
	}
}

// delegationText renders req as the user message a remote agent expects.
func delegationText(req task.Request) string {
	switch req.ToolName {
	case "translator":
		return fmt.Sprintf("translate paper %s into %s",
			req.Args.String("paper_id", ""), req.Args.String("target_lang", "zh-CN"))
	case "ppt_generator":
		return "generate a presentation for paper " + req.Args.String("paper_id", "")
	default:
		args, err := json.Marshal(req.Args)
		if err != nil {
			args = []byte("{}")
		}
		return fmt.Sprintf("execute tool: %s, args: %s", req.ToolName, args)
	}
}

func failureKind(r *task.Result) task.ErrorKind {
	if r.OK() {
		return ""
	}
	return r.Failure.Kind
}
