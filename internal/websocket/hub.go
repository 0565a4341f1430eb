package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/leauyn/openavatarchat/domain"
	"github.com/leauyn/openavatarchat/internal/session"
	"github.com/leauyn/openavatarchat/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict origins once the client hosts are pinned down
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients and runs their turn pipelines.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	pipeline *usecase.Pipeline

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub over a configured pipeline.
func NewHub(pipeline *usecase.Pipeline, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pipeline:   pipeline,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.sess.ID] = client
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("sessionID", client.sess.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.sess.ID]; ok {
				delete(h.clients, client.sess.ID)
				close(client.send)
			}
			h.mu.Unlock()
			h.pipeline.DestroySession(client.sess)
			h.logger.Info("Client unregistered", zap.String("sessionID", client.sess.ID))
		}
	}
}

// Sessions reports the ids of connected sessions.
func (h *Hub) Sessions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients))
	for id := range h.clients {
		out = append(out, id)
	}
	return out
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Pipeline session for this client.
	sess *session.Context

	validator *MessageValidator

	logger *zap.Logger

	// Serializes pipeline access.
	mutex sync.Mutex
}

// HandleWebSocket handles websocket requests from the peer.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	sess := session.NewContext(c.QueryParam("session_id"))
	sess.SubjectID = c.QueryParam("user_id")

	if err := hub.pipeline.CreateSession(c.Request().Context(), sess); err != nil {
		logger.Error("Failed to create pipeline session", zap.Error(err))
		conn.Close()
		return err
	}

	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan WriteData, 256),
		sess:      sess,
		validator: NewMessageValidator(),
		logger:    logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection into the pipeline.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Raw binary frames are little-endian 16-bit PCM without a
			// JSON envelope.
			c.processBinaryAudio(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage validates and routes one inbound JSON message.
func (c *Client) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected inbound message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "message rejected", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *AudioChunkMessage:
		samples, err := msg.DecodeSamples()
		if err != nil {
			c.sendJSON(CreateErrorMessage("invalid_audio", "audio payload rejected", err.Error()))
			return
		}
		c.dispatch(domain.ChatData{
			Type:      domain.ChatDataHumanAudio,
			Samples:   samples,
			TurnID:    msg.TurnID,
			SpeechEnd: msg.IsFinal,
		})

	case *TextInputMessage:
		c.dispatch(domain.ChatData{
			Type:      domain.ChatDataHumanText,
			Text:      msg.Text,
			TurnID:    msg.TurnID,
			EndOfTurn: msg.IsFinal,
		})

	case *CameraFrameMessage:
		image, err := msg.DecodeImage()
		if err != nil {
			c.sendJSON(CreateErrorMessage("invalid_image", "camera frame rejected", err.Error()))
			return
		}
		c.dispatch(domain.ChatData{
			Type:  domain.ChatDataCameraVideo,
			Image: image,
		})

	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	}
}

// processBinaryAudio feeds a raw PCM frame into the pipeline.
func (c *Client) processBinaryAudio(data []byte) {
	if len(data)%2 != 0 {
		c.logger.Warn("Dropping odd-length binary audio frame", zap.Int("size", len(data)))
		return
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
	}
	c.dispatch(domain.ChatData{Type: domain.ChatDataHumanAudio, Samples: samples})
}

// dispatch runs one unit through the pipeline and forwards everything it
// emits back to the peer.
func (c *Client) dispatch(data domain.ChatData) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	err := c.hub.pipeline.Feed(ctx, c.sess, data, func(env domain.Envelope) {
		c.sendJSON(CreateChatDataMessage(c.sess.ID, env))
	})
	if err != nil {
		c.logger.Error("Pipeline failed",
			zap.String("sessionID", c.sess.ID),
			zap.Error(err))
		c.sendJSON(CreateErrorMessage("pipeline_error", "failed to process input", err.Error()))
	}

	// The recognition stage raises this flag when a turn ends with nothing
	// recognized; the client owns local silence detection.
	if c.sess.Shared.EnableVAD() {
		c.sess.Shared.SetEnableVAD(false)
		c.sendJSON(CreateListenStateMessage(c.sess.ID, true))
	}
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Dropping outbound message, send buffer full",
			zap.String("sessionID", c.sess.ID))
	}
}
