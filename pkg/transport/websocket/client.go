// Package websocket bridges gorilla websocket connections and the hub:
// the read pump feeds inbound frames to dispatch, the write pump drains
// the connection's outbound envelope buffer.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astralfield/realtime/internal/config"
	"github.com/astralfield/realtime/internal/logging"
	"github.com/astralfield/realtime/pkg/hub"
)

// SessionOptions represents per-connection transport options
type SessionOptions struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

// DefaultSessionOptions returns default session options
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   25 * time.Second,
		MaxMessageSize: 512 * 1024, // 512KB
	}
}

// SessionOptionsFromConfig derives session options from hub configuration.
func SessionOptionsFromConfig(cfg config.HubConfig) SessionOptions {
	opts := DefaultSessionOptions()
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.PingInterval > 0 {
		opts.PingInterval = cfg.PingInterval
	}
	if cfg.MaxMessageSize > 0 {
		opts.MaxMessageSize = cfg.MaxMessageSize
	}
	return opts
}

// Session couples one websocket connection to one hub connection.
type Session struct {
	conn    *websocket.Conn
	client  *hub.Connection
	hub     *hub.Hub
	logger  *logging.Logger
	options SessionOptions

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSession creates a session for an accepted hub connection.
func NewSession(conn *websocket.Conn, client *hub.Connection, h *hub.Hub, logger *logging.Logger, options SessionOptions) *Session {
	return &Session{
		conn:    conn,
		client:  client,
		hub:     h,
		logger:  logger.WithFields(map[string]any{"conn_id": client.ID()}),
		options: options,
	}
}

// Start starts the session read and write pumps.
func (s *Session) Start() {
	s.wg.Add(2)
	go s.readPump()
	go s.writePump()
}

// Wait blocks until both pumps have stopped.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close tears down the hub connection and the socket. Idempotent.
func (s *Session) Close(reason string) {
	s.closeOnce.Do(func() {
		s.hub.Disconnect(s.client, reason)
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("error closing websocket connection", "error", err)
		}
	})
}

// readPump pumps frames from the websocket connection into dispatch.
func (s *Session) readPump() {
	defer s.wg.Done()
	defer func() {
		s.logger.Debug("read pump stopped")
		s.Close("client disconnected")
	}()

	s.conn.SetReadLimit(s.options.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		return nil
	})

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		s.hub.Dispatch(context.Background(), s.client, message)
	}
}

// writePump pumps outbound envelopes to the websocket connection.
func (s *Session) writePump() {
	defer s.wg.Done()
	defer func() {
		s.logger.Debug("write pump stopped")
		s.Close("write pump stopped")
	}()

	ticker := time.NewTicker(s.options.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.client.Done():
			// Flush whatever is still buffered, the shutdown announcement
			// in particular, before the close handshake.
			for {
				select {
				case env := <-s.client.Outbound():
					s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
					if err := s.write(env.Frame()); err != nil {
						s.logger.Warn("websocket write error", "error", err)
						return
					}
				default:
					s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
					s.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}

		case env := <-s.client.Outbound():
			s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			if err := s.write(env.Frame()); err != nil {
				s.logger.Warn("websocket write error", "error", err)
				return
			}

			// Drain any queued envelopes
			n := len(s.client.Outbound())
			for i := 0; i < n; i++ {
				select {
				case env := <-s.client.Outbound():
					if err := s.write(env.Frame()); err != nil {
						s.logger.Warn("websocket write error", "error", err)
						return
					}
				default:
				}
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("websocket ping error", "error", err)
				return
			}
		}
	}
}

func (s *Session) write(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}
