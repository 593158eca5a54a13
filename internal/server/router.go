package server

import (
	"errors"
	"log/slog"
)

// Router resolves a message's destination and forwards it with a verified sender.
type Router struct {
	sessions *SessionRegistry
	log      *slog.Logger
}

// NewRouter creates a Router delivering through sessions.
func NewRouter(sessions *SessionRegistry, log *slog.Logger) *Router {
	return &Router{sessions: sessions, log: log}
}

// Route stamps msg.From with sender, whatever the client claimed, and hands
// the message to the destination's outbound queue. Delivery failures are
// logged and returned for the caller's information only; the sender is never
// notified and no retry is attempted.
func (rt *Router) Route(sender string, msg ChatMessage) error {
	if msg.From != "" && msg.From != sender {
		rt.log.Warn("Overwriting spoofed sender", "sender", sender, "claimed", msg.From)
	}
	msg.From = sender

	err := rt.sessions.Deliver(msg.To, msg)
	switch {
	case err == nil:
		rt.log.Debug("Message delivered", "from", msg.From, "to", msg.To)
	case errors.Is(err, ErrUndeliverable):
		rt.log.Warn("Message dropped, destination not connected", "from", msg.From, "to", msg.To)
	case errors.Is(err, ErrOutboundFull):
		rt.log.Warn("Message dropped, destination queue full", "from", msg.From, "to", msg.To)
	default:
		rt.log.Error("Message delivery failed", "from", msg.From, "to", msg.To, "error", err)
	}
	return err
}
