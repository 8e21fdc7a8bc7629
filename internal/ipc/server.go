// Package ipc relays authentication events between processes over a Unix
// socket. A helper process that caught the provider redirect sends the
// authorization code here; the server republishes it on the in-process
// window bus where the login coordinator picks it up.
package ipc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/croceverde/trasporti-desk/internal/logsanitize"
	"github.com/croceverde/trasporti-desk/internal/shell"
)

// Server listens on a Unix socket and republishes received events on the bus.
type Server struct {
	socketPath string
	bus        *shell.Bus
	listener   net.Listener
	wg         sync.WaitGroup
	stopChan   chan struct{}
	mu         sync.Mutex
}

// NewServer creates a relay server publishing to bus.
func NewServer(socketPath string, bus *shell.Bus) *Server {
	return &Server{
		socketPath: socketPath,
		bus:        bus,
		stopChan:   make(chan struct{}),
	}
}

// Start begins accepting connections.
func (s *Server) Start() error {
	dir := filepath.Dir(s.socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	// Remove a socket left behind by a previous run.
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	// Authorization codes travel over this socket; only the owning user
	// may connect.
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("event relay started", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return
			default:
				slog.Error("failed to accept connection", "error", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	var msg EventMessage
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&msg); err != nil {
		slog.Error("failed to decode event", "error", err)
		s.sendAck(conn, StatusError, "invalid message format")
		return
	}

	if msg.Type != MessageTypeEvent {
		slog.Error("invalid message type", "type", msg.Type)
		s.sendAck(conn, StatusError, "invalid message type")
		return
	}
	if msg.Topic == "" {
		s.sendAck(conn, StatusError, "missing topic")
		return
	}

	// Topic and message come from another process; strip control
	// characters before they reach the log (CWE-117).
	slog.Info("event received",
		"topic", logsanitize.Sanitize(msg.Topic),
		"has_code", msg.Code != "",
	)

	s.bus.Publish(shell.Event{
		Topic:   msg.Topic,
		Code:    msg.Code,
		State:   msg.State,
		Message: msg.Message,
	})

	s.sendAck(conn, StatusOK, "")
}

func (s *Server) sendAck(conn net.Conn, status, errMsg string) {
	ack := &Ack{Type: MessageTypeAck, Status: status, Error: errMsg}
	enc := json.NewEncoder(conn)
	if err := enc.Encode(ack); err != nil {
		slog.Error("failed to send ack", "error", err)
	}
}

// Stop shuts the relay down and removes the socket file.
func (s *Server) Stop() error {
	slog.Info("stopping event relay")

	close(s.stopChan)

	s.mu.Lock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			slog.Warn("failed to close listener", "error", err)
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove socket file", "error", err)
	}

	slog.Info("event relay stopped")
	return nil
}
