package nats

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Strob0t/taskbridge/internal/config"
	"github.com/Strob0t/taskbridge/internal/port/messagequeue"
)

// testConfig returns a NATS config on a per-test stream, or skips the test
// if NATS_URL is not set.
func testConfig(t *testing.T) config.NATS {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	cfg := config.Defaults().NATS
	cfg.URL = url
	cfg.Stream = "TEST_TOOLS_" + suffix
	cfg.Subject = "test.tools." + suffix
	cfg.Durable = "test_" + suffix
	cfg.AckWait = 2 * time.Second
	return cfg
}

func TestBroker_OpenFailsWithConnectionError(t *testing.T) {
	cfg := config.Defaults().NATS
	cfg.URL = "nats://127.0.0.1:1"

	_, err := NewBroker(cfg).Open(context.Background())
	if !errors.Is(err, messagequeue.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestPublisher_ConnectWhileBrokerDown(t *testing.T) {
	cfg := config.Defaults().NATS
	cfg.URL = "nats://127.0.0.1:1"
	cfg.ConnectBackoff = 50 * time.Millisecond

	pub, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect should not fail while the broker is down: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	if pub.Connected() {
		t.Fatal("expected publisher to be disconnected")
	}
	err = pub.Publish(context.Background(), cfg.Subject, []byte(`{}`))
	if !errors.Is(err, messagequeue.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestBroker_PublishConsume(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	pub, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	stream, err := NewBroker(cfg).Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = stream.Close() })

	if err := pub.Publish(ctx, cfg.Subject, []byte(`{"hello":"nats"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	d, err := stream.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(d.Data()) != `{"hello":"nats"}` {
		t.Fatalf("data = %s", d.Data())
	}
	if err := d.Ack(); err != nil {
		t.Fatalf("Ack: %v", err)
	}
}

func TestBroker_TermIsNotRedelivered(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	pub, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	stream, err := NewBroker(cfg).Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = stream.Close() })

	if err := pub.Publish(ctx, cfg.Subject, []byte(`poison`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Publish(ctx, cfg.Subject, []byte(`next`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	d, err := stream.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := d.Term(); err != nil {
		t.Fatalf("Term: %v", err)
	}

	d, err = stream.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(d.Data()) != "next" {
		t.Fatalf("expected the following message, got %s", d.Data())
	}
	_ = d.Ack()
}

func TestBroker_CloseUnblocksNext(t *testing.T) {
	cfg := testConfig(t)

	stream, err := NewBroker(cfg).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Next()
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	_ = stream.Close()
	_ = stream.Close() // idempotent

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected error from Next after Close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}
