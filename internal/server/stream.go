package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kanban/internal/board"
)

const streamBuffer = 16

// handleStream pushes every published board state as a server-sent event.
func (s *Server) handleStream(c *gin.Context) {
	updates := make(chan board.State, streamBuffer)
	unsubscribe := s.store.Subscribe(func(st board.State) {
		select {
		case updates <- st:
		default:
			// Slow client; it will catch up with the next state.
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			c.SSEvent("state", st)
			c.Writer.Flush()
		}
	}
}
