package chat

import (
	"net/http"
	"strings"
	"time"

	"PRelay/logger"
	"PRelay/tools/ids"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	maxFrameSize = 1 << 16
	pongWait     = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades an authenticated HTTP request into a chat session.
// The token is verified before the upgrade; a bad token is refused with
// 401 and never touches presence state.
func (s *Server) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" || s.cfg.VerifyToken == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	ident, err := s.cfg.VerifyToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warnf("[ws] upgrade failed user=%s: %v", ident.UserID, err)
		return
	}

	client := NewClient(ids.GenerateString(), ident.UserID, ident.Username, ws, s.cfg.SendQueueSize)
	go client.WritePump()
	s.HandleConnect(client)
	s.readLoop(client)
}

// readLoop is the per-connection reader. Malformed frames and handler
// errors are logged and skipped; only transport errors end the session.
func (s *Server) readLoop(c *Client) {
	defer func() {
		s.HandleDisconnect(c)
		c.CloseSend()
	}()

	c.WS.SetReadLimit(maxFrameSize)
	_ = c.WS.SetReadDeadline(time.Now().Add(pongWait))
	c.WS.SetPongHandler(func(string) error {
		return c.WS.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := &Context{S: s}
	for {
		_, raw, err := c.WS.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Infof("[ws] read error conn=%s user=%s: %v", c.ConnID, c.UserID, err)
			}
			return
		}

		frame, err := ParseFrameJSON(raw)
		if err != nil {
			logger.Warnf("[ws] bad frame conn=%s: %v sample=%q", c.ConnID, err, truncate(raw, 128))
			continue
		}
		if err := s.disp.Dispatch(ctx, c, frame); err != nil {
			logger.Warnf("[ws] handle %s conn=%s user=%s: %v", frame.Kind, c.ConnID, c.UserID, err)
		}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
