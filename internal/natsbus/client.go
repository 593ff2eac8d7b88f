package natsbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Client is a connection to the bus. Connections made through NewClient use
// the in-process transport of the embedded server, so event traffic between
// components never leaves the process.
type Client struct {
	conn *nats.Conn
}

func NewClient(bus *Bus) (*Client, error) {
	conn, err := nats.Connect(bus.URL(), nats.InProcessServer(bus.server))
	if err != nil {
		return nil, fmt.Errorf("connect to bus: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) PublishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return c.conn.Publish(topic, data)
}

func (c *Client) Subscribe(topic string, handler func(msg *nats.Msg)) (*nats.Subscription, error) {
	return c.conn.Subscribe(topic, handler)
}

// RequestWithContext issues a request whose deadline follows the context, so
// callers can bound a completion call with both a timeout and cancellation.
func (c *Client) RequestWithContext(ctx context.Context, topic string, data []byte) (*nats.Msg, error) {
	return c.conn.RequestWithContext(ctx, topic, data)
}

func (c *Client) Close() {
	c.conn.Close()
}
