// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
func (s *Server) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/test", HealthHandler)
	mux.HandleFunc("/register", s.RegisterHandler)
	mux.HandleFunc("/users", s.UsersHandler)
	mux.HandleFunc("/online", s.OnlineHandler)
	mux.HandleFunc("/chat", s.ChatHandler)
	mux.HandleFunc("/ws", s.ChatHandler)
	mux.HandleFunc("/console", s.ConsolePageHandler)
	return mux
}
