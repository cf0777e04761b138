package chathub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pairgogo/backend/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketClient implements the Client interface over gorilla/websocket.
type WebSocketClient struct {
	UserID   string
	Username string
	Conn     *websocket.Conn
	Hub      *ManagerService
	Send     chan models.ChatMessage

	mu        sync.Mutex
	sessionID string
}

func NewWebSocketClient(userID, username string, conn *websocket.Conn, hub *ManagerService) *WebSocketClient {
	return &WebSocketClient{
		UserID:   userID,
		Username: username,
		Conn:     conn,
		Hub:      hub,
		Send:     make(chan models.ChatMessage, 64),
	}
}

func (c *WebSocketClient) GetUserID() string   { return c.UserID }
func (c *WebSocketClient) GetUsername() string { return c.Username }

func (c *WebSocketClient) GetSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *WebSocketClient) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *WebSocketClient) GetSendChannel() chan<- models.ChatMessage { return c.Send }

// Run starts the pumps for the WebSocket connection.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes the Send channel, which stops the write pump; the read pump
// stops when the connection closes in its defer.
func (c *WebSocketClient) Close() {
	close(c.Send)
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var msg models.ChatMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.UserID, err)
			continue
		}

		// The sender identity always comes from the authenticated
		// connection, never from the message body.
		msg.SenderID = c.UserID
		msg.SenderName = c.Username

		c.Hub.IncomingCh <- msg
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			dataToWrite, err := json.Marshal(message)
			if err != nil {
				log.Printf("Error encoding JSON for client %s: %v", c.UserID, err)
				continue
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(dataToWrite)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
