package service

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/taskbridge/internal/config"
	"github.com/Strob0t/taskbridge/internal/domain/task"
	a2aport "github.com/Strob0t/taskbridge/internal/port/a2a"
	"github.com/Strob0t/taskbridge/internal/port/localtool"
	"github.com/Strob0t/taskbridge/internal/port/messagequeue"
	"github.com/Strob0t/taskbridge/internal/resilience"
)

var errMockUnreachable = errors.New("connection refused")

// mockAgent replays fixed fragments, or fails, and counts calls.
type mockAgent struct {
	calls     atomic.Int32
	fragments []string
	err       error
	block     chan struct{} // when set, the stream waits on it before yielding

	mu   sync.Mutex
	last a2aport.Request
}

func (m *mockAgent) Stream(_ context.Context, req a2aport.Request) iter.Seq2[string, error] {
	m.calls.Add(1)
	m.mu.Lock()
	m.last = req
	m.mu.Unlock()
	return func(yield func(string, error) bool) {
		if m.block != nil {
			<-m.block
		}
		for _, f := range m.fragments {
			if !yield(f, nil) {
				return
			}
		}
		if m.err != nil {
			yield("", m.err)
		}
	}
}

func (m *mockAgent) lastRequest() a2aport.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// mockTool is a configurable local tool.
type mockTool struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context, args task.Args) (json.RawMessage, error)
}

func (m *mockTool) Name() string           { return m.name }
func (m *mockTool) Timeout() time.Duration { return m.timeout }
func (m *mockTool) Run(ctx context.Context, args task.Args) (json.RawMessage, error) {
	return m.run(ctx, args)
}

// mockDispatcher records dispatched requests.
type mockDispatcher struct {
	mu   sync.Mutex
	reqs []task.Request
	got  chan task.Request
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{got: make(chan task.Request, 64)}
}

func (m *mockDispatcher) Dispatch(req task.Request) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	m.got <- req
}

// mockDelivery tracks how a delivery was settled.
type mockDelivery struct {
	data  []byte
	acked atomic.Bool
	termd atomic.Bool
}

func (d *mockDelivery) Data() []byte { return d.data }
func (d *mockDelivery) Ack() error   { d.acked.Store(true); return nil }
func (d *mockDelivery) Term() error  { d.termd.Store(true); return nil }

// mockStream hands out queued deliveries, then the queued error, then blocks
// until closed.
type mockStream struct {
	items  chan *mockDelivery
	fail   chan error
	closed chan struct{}
	once   sync.Once
}

func newMockStream() *mockStream {
	return &mockStream{
		items:  make(chan *mockDelivery, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *mockStream) Next() (messagequeue.Delivery, error) {
	select {
	case d := <-s.items:
		return d, nil
	default:
	}
	select {
	case d := <-s.items:
		return d, nil
	case err := <-s.fail:
		return nil, err
	case <-s.closed:
		return nil, errors.New("stream closed")
	}
}

func (s *mockStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// mockBroker returns scripted Open outcomes in order; once exhausted it
// keeps returning a connection error.
type mockBroker struct {
	mu      sync.Mutex
	opens   []func() (messagequeue.Stream, error)
	opened  atomic.Int32
	openedC chan int
}

func newMockBroker(opens ...func() (messagequeue.Stream, error)) *mockBroker {
	return &mockBroker{opens: opens, openedC: make(chan int, 64)}
}

func (b *mockBroker) Open(_ context.Context) (messagequeue.Stream, error) {
	n := int(b.opened.Add(1))
	b.openedC <- n
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.opens) == 0 {
		return nil, messagequeue.ErrConnection
	}
	next := b.opens[0]
	b.opens = b.opens[1:]
	return next()
}

// mockPublisher records published messages.
type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
	data     [][]byte
	err      error
	down     bool
}

func (p *mockPublisher) Connected() bool { return !p.down }

func (p *mockPublisher) Publish(_ context.Context, subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.data = append(p.data, data)
	return nil
}

func testRemoteConfig(agents map[string]string) config.Remote {
	return config.Remote{
		AgentURLs:  agents,
		Timeout:    time.Second,
		Language:   "chinese",
		FenceBegin: "BEGIN",
		FenceEnd:   "END",
		ExcerptLen: 200,
	}
}

// bridge bundles the pieces an Executor needs.
type bridge struct {
	store    *ResultStore
	registry *Registry
	breakers *resilience.Breakers
	exec     *Executor
}

func newBridge(agent a2aport.Agent, cfg config.Remote, tools ...localtool.Tool) *bridge {
	store := NewResultStore()
	registry := NewRegistry(store)
	breakers := resilience.NewBreakers(3, time.Minute)
	exec := NewExecutor(cfg, breakers, agent, store, registry, tools...)
	return &bridge{store: store, registry: registry, breakers: breakers, exec: exec}
}

func waitResult(ch <-chan *task.Result, d time.Duration) (*task.Result, bool) {
	select {
	case r, ok := <-ch:
		return r, ok
	case <-time.After(d):
		return nil, false
	}
}
