// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, account registration, and the built-in console page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// LivenessToken is the body returned by the health endpoint.
const LivenessToken = "healthy :)"

const maxRegisterBodyBytes = 4096

// ChatHandler handles WebSocket upgrade requests. It validates that the
// request uses the GET method, upgrades the connection, and hands it to the
// server, which runs the login handshake and the read/write pumps.
func (s *Server) ChatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Chat endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	s.handle(conn, r.RemoteAddr)
}

// HealthHandler responds with the fixed liveness token clients probe for.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, LivenessToken)
}

// RegisterHandler creates an account from a JSON {username, password} body.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Register endpoint only accepts POST requests.", http.StatusMethodNotAllowed)
		return
	}

	var creds Credentials
	body := http.MaxBytesReader(w, r.Body, maxRegisterBodyBytes)
	if err := json.NewDecoder(body).Decode(&creds); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := s.directory.Register(creds.Username, creds.Password)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		http.Error(w, "User already exists", http.StatusConflict)
	case errors.Is(err, ErrInvalidAccount):
		http.Error(w, "Invalid username or password", http.StatusBadRequest)
	case err != nil:
		s.log.Error("Registration failed", "username", creds.Username, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	default:
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprint(w, "User registered")
	}
}

// UsersHandler lists registered usernames. Credentials are never exposed.
func (s *Server) UsersHandler(w http.ResponseWriter, r *http.Request) {
	s.writeNames(w, r, s.directory.Usernames())
}

// OnlineHandler lists usernames that currently have a live session.
func (s *Server) OnlineHandler(w http.ResponseWriter, r *http.Request) {
	s.writeNames(w, r, s.sessions.Online())
}

func (s *Server) writeNames(w http.ResponseWriter, r *http.Request, names []string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(names); err != nil {
		s.log.Warn("Error writing JSON response", "error", err)
	}
}

// ConsolePageHandler serves an HTML page for trying the relay from a browser:
// log in, then send direct messages to other connected users.
func (s *Server) ConsolePageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, consolePage); err != nil {
		s.log.Warn("Error writing HTML response", "error", err)
	}
}

const consolePage = `<!DOCTYPE html>
<html>
<head>
    <title>Relay Console</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"], input[type="password"] { padding: 5px; margin-right: 10px; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>Relay Console</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="password" id="password" placeholder="Password">
        <button id="connectButton" onclick="toggleConnection()">Log in</button>
    </div>
    <div>
        <input type="text" id="to" placeholder="To" disabled>
        <input type="text" id="content" placeholder="Message" disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const el = (id) => document.getElementById(id);

        function addLine(text, color) {
            const line = document.createElement('div');
            line.style.color = color || 'gray';
            line.textContent = text;
            el('messages').appendChild(line);
            el('messages').scrollTop = el('messages').scrollHeight;
        }

        function updateStatus(connected) {
            el('status').textContent = connected ? 'Connected' : 'Disconnected';
            el('status').className = 'status ' + (connected ? 'connected' : 'disconnected');
            el('to').disabled = !connected;
            el('content').disabled = !connected;
            el('sendButton').disabled = !connected;
            el('connectButton').textContent = connected ? 'Disconnect' : 'Log in';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/chat');
            ws.onopen = () => {
                ws.send(JSON.stringify({ username: el('username').value, password: el('password').value }));
                addLine('Connected as ' + el('username').value);
                updateStatus(true);
            };
            ws.onmessage = (event) => {
                const msg = JSON.parse(event.data);
                addLine(msg.from + ': ' + msg.content, 'green');
            };
            ws.onclose = (event) => {
                addLine('Connection closed ' + (event.reason || ''));
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const to = el('to').value.trim();
            const content = el('content').value;
            if (to && content && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ to: to, content: content }));
                addLine('You -> ' + to + ': ' + content, 'blue');
                el('content').value = '';
            }
        }

        el('content').addEventListener('keypress', (e) => {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
