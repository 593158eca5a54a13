// Package server defines the wire payloads, sentinel errors, and small helpers
// shared by the directory, registry, router, and connection handler.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyExists is returned when registering a username that is taken.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrAuthFailure is returned when a login frame does not match any account.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrUndeliverable is returned when the destination has no live session.
	ErrUndeliverable = errors.New("destination not connected")
	// ErrOutboundFull is returned when the destination's outbound queue is at capacity.
	ErrOutboundFull = errors.New("destination outbound queue full")
	// ErrMalformedPayload is returned when a frame cannot be decoded.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInvalidAccount is returned when registration input fails validation.
	ErrInvalidAccount = errors.New("invalid account")
)

// Credentials is the JSON body of both the login handshake frame and the
// registration request.
type Credentials struct {
	Username string `json:"username" validate:"required,max=64,username"`
	Password string `json:"password" validate:"required,max=128"`
}

// ChatMessage is the addressed message exchanged after the handshake. The From
// field is ignored on input and always stamped by the server.
type ChatMessage struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Content string `json:"content"`
}

func decodeCredentials(raw []byte) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: login frame: %v", ErrMalformedPayload, err)
	}
	return creds, nil
}

func decodeChatMessage(raw []byte) (ChatMessage, error) {
	var msg ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: chat frame: %v", ErrMalformedPayload, err)
	}
	return msg, nil
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
