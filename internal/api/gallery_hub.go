package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"headshotstudio/internal/store"
)

const (
	galleryEventHello     = "hello"
	galleryEventPublished = "image.published"

	galleryWriteWait  = 10 * time.Second
	galleryClientSend = 32
)

// GalleryEvent is the envelope pushed to gallery feed subscribers.
type GalleryEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// galleryHub fans newly published images out to websocket subscribers.
// The client set is owned by the run goroutine.
type galleryHub struct {
	clients    map[*galleryClient]bool
	broadcast  chan []byte
	register   chan *galleryClient
	unregister chan *galleryClient
	quit       chan struct{}
	upgrader   websocket.Upgrader
}

type galleryClient struct {
	hub  *galleryHub
	conn *websocket.Conn
	send chan []byte
}

func newGalleryHub() *galleryHub {
	return &galleryHub{
		clients:    make(map[*galleryClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *galleryClient),
		unregister: make(chan *galleryClient),
		quit:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *galleryHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Int("clients", len(h.clients)).Msg("gallery subscriber connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow subscriber; drop it.
					close(client.send)
					delete(h.clients, client)
				}
			}

		case <-h.quit:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

func (h *galleryHub) stop() {
	select {
	case <-h.quit:
	default:
		close(h.quit)
	}
}

// publish queues an image for every subscriber. It never blocks the caller.
func (h *galleryHub) publish(img store.GalleryImage) {
	data, err := galleryEventJSON(galleryEventPublished, img)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode gallery event")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Warn().Str("image_id", img.ID).Msg("gallery broadcast queue full, dropping event")
	}
}

func galleryEventJSON(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(GalleryEvent{Type: eventType, Payload: raw})
}

func (s *Server) handleGalleryWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.gallery.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("gallery websocket upgrade failed")
		return
	}

	client := &galleryClient{
		hub:  s.gallery,
		conn: conn,
		send: make(chan []byte, galleryClientSend),
	}

	hello, _ := galleryEventJSON(galleryEventHello, map[string]any{"limit": galleryLimit})
	client.send <- hello

	select {
	case s.gallery.register <- client:
	case <-s.gallery.quit:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only drains control frames; subscribers never send data.
func (c *galleryClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *galleryClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(galleryWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
