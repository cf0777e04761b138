package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pairgogo/backend/internal/chathub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten for production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the HTTP connection and hands the client to the
// hub. Banned users are refused before the upgrade.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	anonID, username, ok := bearerIdentity(c)
	if !ok {
		return
	}

	banned, err := h.Storage.IsUserBanned(anonID)
	if err != nil {
		log.Printf("ERROR: ban check for %s: %v", anonID, err)
	}
	if banned {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "User is banned"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := chathub.NewWebSocketClient(anonID, username, conn, h.Hub)
	h.Hub.RegisterCh <- client
	client.Run()
}
