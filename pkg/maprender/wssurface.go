package maprender

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// markerOp is one rendering instruction broadcast to map clients.
type markerOp struct {
	Op string `json:"op"` // create|move|rotate|remove|center|pan

	ID           string   `json:"id,omitempty"`
	Latitude     float64  `json:"latitude,omitempty"`
	Longitude    float64  `json:"longitude,omitempty"`
	Rotation     *float64 `json:"rotation,omitempty"`
	PixelOffsetX int      `json:"pixelOffsetX,omitempty"`
}

// WebsocketSurface broadcasts marker operations to connected map clients.
// A client receives operations only after it has sent its ready message, the
// map library on the other end must be initialised before markers arrive.
type WebsocketSurface struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool // value is the ready flag
}

func NewWebsocketSurface() *WebsocketSurface {
	return &WebsocketSurface{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[*websocket.Conn]bool{},
	}
}

// HandleWebsocket upgrades an HTTP request into a map client connection.
func (s *WebsocketSurface) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = false
	s.mu.Unlock()

	go s.readPump(conn)
}

func (s *WebsocketSurface) readPump(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		// Any client message counts as the ready signal
		s.mu.Lock()
		s.clients[conn] = true
		s.mu.Unlock()
	}
}

func (s *WebsocketSurface) broadcast(op markerOp) error {
	data, err := json.Marshal(op)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for conn, ready := range s.clients {
		if !ready {
			continue
		}

		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
	s.mu.Unlock()

	return nil
}

func (s *WebsocketSurface) CreateMarker(id string, latitude float64, longitude float64, rotation *float64) error {
	return s.broadcast(markerOp{Op: "create", ID: id, Latitude: latitude, Longitude: longitude, Rotation: rotation})
}

func (s *WebsocketSurface) MoveMarker(id string, latitude float64, longitude float64) error {
	return s.broadcast(markerOp{Op: "move", ID: id, Latitude: latitude, Longitude: longitude})
}

func (s *WebsocketSurface) RotateMarker(id string, rotation float64) error {
	return s.broadcast(markerOp{Op: "rotate", ID: id, Rotation: &rotation})
}

func (s *WebsocketSurface) RemoveMarker(id string) error {
	return s.broadcast(markerOp{Op: "remove", ID: id})
}

func (s *WebsocketSurface) Center(latitude float64, longitude float64) error {
	return s.broadcast(markerOp{Op: "center", Latitude: latitude, Longitude: longitude})
}

func (s *WebsocketSurface) Pan(latitude float64, longitude float64, pixelOffsetX int) error {
	return s.broadcast(markerOp{Op: "pan", Latitude: latitude, Longitude: longitude, PixelOffsetX: pixelOffsetX})
}

var _ Surface = (*WebsocketSurface)(nil)
