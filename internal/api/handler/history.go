package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ChatHistory returns the archived messages of a session. Participants
// only.
func (h *Handler) ChatHistory(c *gin.Context) {
	uid, _, ok := bearerIdentity(c)
	if !ok {
		return
	}
	sessionID := c.Param("session_id")

	sess, err := h.Sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if !sess.Has(uid) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a participant"})
		return
	}

	history, err := h.Storage.GetChatHistory(sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "messages": history})
}

// Health is the liveness endpoint.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
