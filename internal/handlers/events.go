package handlers

import (
	"io"

	"medbuddy/internal/auth"

	"github.com/gin-gonic/gin"
)

// StreamEvents bridges the realtime bus to the client over Server-Sent
// Events. The stream carries insert/update events on the caller's tracking
// and alert rows; there is no replay of events missed while disconnected.
func StreamEvents(c *gin.Context) {
	userID := auth.GetUserIDFromContext(c)

	events, cancel := eventBus.Subscribe(c.Request.Context(), userID)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("change", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
