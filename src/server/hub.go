package server

import (
	"encoding/json"
	"net/http"

	"backtest-engine/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *SessionServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			// Send initial state on connect
			s.stateMutex.RLock()
			if s.latestState != nil {
				client.send <- s.latestState
			}
			s.stateMutex.RUnlock()

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case snapshot := <-s.broadcast:
			// Update state and broadcast
			s.stateMutex.Lock()
			s.latestState = snapshot
			s.stateMutex.Unlock()

			for client := range s.clients {
				select {
				case client.send <- client.filtered(snapshot):
					// Message sent successfully
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast pushes a tick snapshot to the hub queue.
func (s *SessionServer) Broadcast(snapshot models.MSessionSnapshot) {
	snapshot.Type = "UPDATE"

	// Non-blocking: with a 256-deep queue a full buffer means the hub is
	// wedged, and the pipeline must not wait on it.
	select {
	case s.broadcast <- &snapshot:
	default:
		s.Logger.Warning("Broadcast queue full, snapshot dropped")
	}
}

// -----------------------------------------------------------------------------

// UpdateState replaces the cached state without waking subscribers.
func (s *SessionServer) UpdateState(snapshot models.MSessionSnapshot) {
	snapshot.Type = "UPDATE"

	s.stateMutex.Lock()
	s.latestState = &snapshot
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *SessionServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan interface{}, 256),
	}

	s.register <- client

	// Start goroutines for reading/writing
	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

func (s *SessionServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.setFilter(cmd.Symbols)

	s.stateMutex.RLock()
	response := filterSnapshot(s.latestState, cmd.Symbols)
	s.stateMutex.RUnlock()

	// Direct response; drop rather than block if the client buffer is full
	select {
	case client.send <- response:
	default:
	}
}
