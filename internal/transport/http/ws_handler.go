package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/gorilla/websocket"

	"contest-engine/internal/app"
	"contest-engine/internal/domain"
)

// WSHandler streams live leaderboard snapshots over a websocket. Clients get
// the current standing on connect and a push after every accepted submission.
type WSHandler struct {
	service  *app.ContestService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ContestService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string             `json:"type"`
	Payload domain.Leaderboard `json:"payload"`
}

// Stream upgrades the request and pumps leaderboard updates until the client
// disconnects.
func (h *WSHandler) Stream(c *gin.Context) {
	contestID := c.Param("id")
	initial, err := h.service.Leaderboard(c.Request.Context(), contestID, 10, 0)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warningf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.service.Hub().Subscribe(contestID)
	defer cancel()

	done := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: initial}); err != nil {
			return
		}
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: update}); err != nil {
					logger.Warningf("ws write error: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	}()

	// The read loop only exists to observe the close handshake.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	cancel()
	<-writerDone
}
