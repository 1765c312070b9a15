// Package nats implements the message queue ports using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/taskbridge/internal/config"
	"github.com/Strob0t/taskbridge/internal/port/messagequeue"
)

// connect dials NATS with the configured credentials. Extra options are
// appended after the defaults.
func connect(cfg config.NATS, name string, opts ...nats.Option) (*nats.Conn, error) {
	base := []nats.Option{nats.Name(name)}
	if cfg.User != "" {
		base = append(base, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(cfg.URL, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w: %w", cfg.URL, messagequeue.ErrConnection, err)
	}
	return nc, nil
}

// ensureStream declares the durable work-queue stream holding tool requests.
func ensureStream(ctx context.Context, js jetstream.JetStream, cfg config.NATS) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("jetstream stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// Broker opens durable pull subscriptions on the tool request stream.
// Each Open uses a fresh connection with client-side reconnects disabled,
// so a lost connection surfaces to the caller's reconnect loop.
type Broker struct {
	cfg config.NATS
}

// NewBroker creates a Broker for cfg.
func NewBroker(cfg config.NATS) *Broker {
	return &Broker{cfg: cfg}
}

// Open connects, declares the stream and durable consumer and starts
// pulling messages.
func (b *Broker) Open(ctx context.Context) (messagequeue.Stream, error) {
	s := &stream{}
	nc, err := connect(b.cfg, "taskbridge-consumer",
		nats.NoReconnect(),
		nats.ClosedHandler(func(*nats.Conn) { s.lose() }),
	)
	if err != nil {
		return nil, err
	}
	s.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}
	if err := ensureStream(ctx, js, b.cfg); err != nil {
		nc.Close()
		return nil, err
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, b.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       b.cfg.Durable,
		FilterSubject: b.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       b.cfg.AckWait,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream consumer %s: %w", b.cfg.Durable, err)
	}

	it, err := cons.Messages()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream messages: %w", err)
	}
	s.setIterator(it)

	slog.Info("nats consumer connected", "url", b.cfg.URL, "stream", b.cfg.Stream, "durable", b.cfg.Durable)
	return s, nil
}

type stream struct {
	nc     *nats.Conn
	mu     sync.Mutex
	it     jetstream.MessagesContext
	lost   atomic.Bool
	closed atomic.Bool
	once   sync.Once
}

func (s *stream) setIterator(it jetstream.MessagesContext) {
	s.mu.Lock()
	s.it = it
	s.mu.Unlock()
	if s.lost.Load() {
		it.Stop()
	}
}

// lose marks the connection as gone and unblocks a pending Next.
func (s *stream) lose() {
	s.lost.Store(true)
	s.mu.Lock()
	it := s.it
	s.mu.Unlock()
	if it != nil {
		it.Stop()
	}
}

func (s *stream) Next() (messagequeue.Delivery, error) {
	msg, err := s.it.Next()
	if err != nil {
		if s.lost.Load() && !s.closed.Load() {
			return nil, fmt.Errorf("nats connection lost: %w: %w", messagequeue.ErrConnection, err)
		}
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrDisconnected) {
			return nil, fmt.Errorf("nats next: %w: %w", messagequeue.ErrConnection, err)
		}
		return nil, fmt.Errorf("nats next: %w", err)
	}
	return delivery{msg: msg}, nil
}

func (s *stream) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.it.Stop()
		s.nc.Close()
	})
	return nil
}

type delivery struct {
	msg jetstream.Msg
}

func (d delivery) Data() []byte { return d.msg.Data() }
func (d delivery) Ack() error   { return d.msg.Ack() }
func (d delivery) Term() error  { return d.msg.Term() }

// Publisher publishes tool requests over a long-lived, auto-reconnecting
// connection. A broker that is down at startup does not fail Connect: the
// client keeps retrying in the background and Publish reports
// ErrConnection until it is back.
type Publisher struct {
	cfg config.NATS
	nc  *nats.Conn
	js  jetstream.JetStream
}

// Connect opens the publishing connection and ensures the stream exists
// once the broker is reachable.
func Connect(ctx context.Context, cfg config.NATS) (*Publisher, error) {
	p := &Publisher{cfg: cfg}
	nc, err := connect(cfg, "taskbridge-publisher",
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ConnectBackoff),
		nats.ConnectHandler(func(*nats.Conn) { p.onConnect() }),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats publisher disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			slog.Info("nats publisher reconnected", "url", cfg.URL)
		}),
	)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}
	p.nc, p.js = nc, js

	if !nc.IsConnected() {
		slog.Warn("nats unreachable, publisher retrying in background", "url", cfg.URL, "retry", cfg.ConnectBackoff)
		return p, nil
	}
	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, err
	}
	slog.Info("nats publisher connected", "url", cfg.URL, "stream", cfg.Stream)
	return p, nil
}

// onConnect runs when a connection that was retried in the background is
// finally established.
func (p *Publisher) onConnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureStream(ctx, p.js, p.cfg); err != nil {
		slog.Error("nats publisher stream setup", "error", err)
		return
	}
	slog.Info("nats publisher connected", "url", p.cfg.URL, "stream", p.cfg.Stream)
}

// Connected reports whether the publishing connection is up.
func (p *Publisher) Connected() bool {
	return p.nc.IsConnected()
}

// Publish sends data to subject and waits for the stream's acknowledgement.
func (p *Publisher) Publish(ctx context.Context, subject string, data []byte) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats publish %s: %w", subject, messagequeue.ErrConnection)
	}
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close drains and shuts down the connection. A connection that is still
// retrying is closed outright.
func (p *Publisher) Close() error {
	if !p.nc.IsConnected() {
		p.nc.Close()
		return nil
	}
	return p.nc.Drain()
}
