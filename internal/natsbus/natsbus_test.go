package natsbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sumithkumar07/aetherflow/internal/config"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := New(config.NATSConfig{
		Port:    -1, // random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}

func newTestClient(t *testing.T, bus *Bus) *Client {
	t.Helper()
	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestBusStartStop(t *testing.T) {
	bus := newTestBus(t)
	if bus.URL() == "" {
		t.Fatal("expected non-empty URL")
	}
}

func TestPubSub(t *testing.T) {
	bus := newTestBus(t)
	client := newTestClient(t, bus)

	received := make(chan []byte, 1)
	_, err := client.Subscribe("test.topic", func(msg *nats.Msg) {
		received <- msg.Data
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.PublishJSON("test.topic", map[string]string{"greeting": "hello"}); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	select {
	case data := <-received:
		var payload map[string]string
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}
		if payload["greeting"] != "hello" {
			t.Errorf("expected greeting 'hello', got %q", payload["greeting"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestRequestReply(t *testing.T) {
	bus := newTestBus(t)
	client := newTestClient(t, bus)

	_, err := client.Subscribe(TopicCompletion("developer"), func(msg *nats.Msg) {
		_ = msg.Respond([]byte(`{"status":"success"}`))
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.RequestWithContext(ctx, TopicCompletion("developer"), []byte(`{}`))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if string(resp.Data) != `{"status":"success"}` {
		t.Errorf("unexpected reply: %s", resp.Data)
	}
}

func TestRequestHonorsContextCancellation(t *testing.T) {
	bus := newTestBus(t)
	client := newTestClient(t, bus)

	// Nothing subscribes to the topic, so the request can only end when the
	// context does.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.RequestWithContext(ctx, TopicCompletion("designer"), []byte(`{}`)); err == nil {
		t.Fatal("expected error for request with no responder")
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicCompletion("developer"); got != "completion.developer" {
		t.Errorf("expected completion.developer, got %s", got)
	}
	if got := TopicEventsWorkflow("wf1"); got != "events.workflow.wf1" {
		t.Errorf("expected events.workflow.wf1, got %s", got)
	}
	if got := TopicEventsAgent("tester"); got != "events.agent.tester" {
		t.Errorf("expected events.agent.tester, got %s", got)
	}
}
