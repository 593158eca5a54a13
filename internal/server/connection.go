// Package server manages individual WebSocket connections, handling the login
// handshake, read/write pumps, and cleanup for each peer.
package server

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is one peer's WebSocket connection. It moves through
// AwaitingLogin, Active, and Closed; a session exists only while Active.
type Connection struct {
	conn    *websocket.Conn
	srv     *Server
	addr    string
	log     *slog.Logger
	session *Session
	active  atomic.Bool
}

func newConnection(conn *websocket.Conn, srv *Server, addr, id string) *Connection {
	conn.SetReadLimit(srv.cfg.MaxMessageSize)
	return &Connection{
		conn: conn,
		srv:  srv,
		addr: addr,
		log:  srv.log.With("conn_id", id, "remote_addr", addr),
	}
}

// serve runs the connection to completion. The caller's goroutine becomes the
// read pump; the write pump runs in a second goroutine tracked by the server.
func (c *Connection) serve() {
	account, err := c.login()
	if err != nil {
		c.closeConnection()
		return
	}

	c.log = c.log.With("username", account.Username)
	c.session = NewSession(account.Username, c.srv.cfg.SendBufferSize)
	if !c.srv.activate(c) {
		c.writeCloseReason(websocket.CloseGoingAway, "server shutting down")
		c.closeConnection()
		return
	}
	c.log.Info("User logged in", "session", c.session.ID)

	c.srv.wg.Add(1)
	go func() {
		defer c.srv.wg.Done()
		c.writePump()
	}()

	c.readPump()
}

// login blocks on the first frame and verifies it against the directory.
// Malformed frames and bad credentials both end the connection with a
// policy-violation close frame.
func (c *Connection) login() (Account, error) {
	var deadline time.Time
	if c.srv.cfg.HandshakeTimeout > 0 {
		deadline = time.Now().Add(c.srv.cfg.HandshakeTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		c.log.Warn("Error setting handshake read deadline", "error", err)
	}

	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		c.handleReadError(err)
		return Account{}, err
	}

	creds, err := decodeCredentials(raw)
	if err != nil {
		c.log.Warn("Rejecting malformed login frame", "error", err)
		c.writeCloseReason(websocket.ClosePolicyViolation, "malformed login")
		return Account{}, err
	}

	account, ok := c.srv.directory.Verify(creds.Username, creds.Password)
	if !ok {
		c.log.Warn("Login failed", "username", creds.Username)
		c.writeCloseReason(websocket.ClosePolicyViolation, ErrAuthFailure.Error())
		return Account{}, ErrAuthFailure
	}
	return account, nil
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Connection) setupReadConnection() {
	pongWait := c.srv.cfg.PongWait
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the read failure at a level matching how expected it is.
func (c *Connection) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", "limit", c.srv.cfg.MaxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Info("Peer disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("Connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket close", "error", err)
	default:
		c.log.Warn("WebSocket read error", "error", err)
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.srv.sessions.RemoveSession(c.session)
		c.closeConnection()
		c.log.Info("User disconnected")
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		msg, err := decodeChatMessage(raw)
		if err != nil {
			c.log.Warn("Discarding malformed chat frame", "error", err)
			continue
		}

		_ = c.srv.router.Route(c.session.Username, msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.srv.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Connection) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case msg, ok := <-c.session.Outbound():
		if !ok {
			c.writeCloseReason(websocket.CloseNormalClosure, "session closed")
			return false
		}
		return c.writeChatMessage(msg)
	case <-ticker.C:
		return c.handlePing()
	}
}

// writeChatMessage writes one message as its own JSON text frame.
func (c *Connection) writeChatMessage(msg ChatMessage) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", "error", err, "from", msg.From)
		}
		return false
	}
	return true
}

// writeCloseReason sends a close frame; failures are only logged.
func (c *Connection) writeCloseReason(code int, reason string) {
	deadline := time.Now().Add(c.srv.cfg.WriteWait)
	payload := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, payload, deadline); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("Error writing close message", "error", err)
		}
	}
}

// handlePing sends a ping message to keep the connection alive
func (c *Connection) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing ping message", "error", err)
		}
		return false
	}
	return true
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Connection) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection", "error", err)
		}
	}
}
