package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client sends events to the main process from an authentication surface.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a relay client for the given socket.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SendEvent delivers one event and waits for the acknowledgement.
func (c *Client) SendEvent(ctx context.Context, msg *EventMessage) error {
	msg.Type = MessageTypeEvent

	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return fmt.Errorf("failed to connect to main process: %w", err)
	}
	defer func() { _ = conn.Close() }()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(msg); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}

	var ack Ack
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&ack); err != nil {
		return fmt.Errorf("failed to read ack: %w", err)
	}

	if ack.Type != MessageTypeAck {
		return fmt.Errorf("invalid ack type: %s", ack.Type)
	}
	if ack.Status != StatusOK {
		return fmt.Errorf("event rejected: %s", ack.Error)
	}

	return nil
}

// SetTimeout sets the connection timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}
