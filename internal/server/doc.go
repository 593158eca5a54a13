// Package server implements the realtime message relay: an in-memory user
// directory, the registry of live sessions, the per-connection WebSocket
// handshake and read/write pumps, and the router that forwards addressed
// messages between logged-in users.
//
// The implementation is organized into specialized files for configuration,
// directory, sessions, routing, connections, and HTTP handlers.
package server
