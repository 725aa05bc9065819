package chat

import (
	"sync"
	"time"

	"PRelay/logger"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
)

// Client is one live transport session belonging to a single user. A
// user may hold several of these at once (tabs, devices); each keeps its
// own send queue drained by exactly one writer goroutine, which is the
// gorilla single-writer rule.
type Client struct {
	ConnID   string
	UserID   string
	Username string
	WS       *websocket.Conn
	Send     chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(connID, userID, username string, ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Client{
		ConnID:   connID,
		UserID:   userID,
		Username: username,
		WS:       ws,
		Send:     make(chan []byte, sendQueueSize),
	}
}

// Enqueue hands a payload to the writer without blocking. A full queue
// means a slow client; the payload is dropped and reconciled on the
// client's next REST fetch. The mutex covers the closed check and the
// send together, so a fanout worker holding a stale connection snapshot
// races CloseSend into a drop, never a send on a closed channel.
func (c *Client) Enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		logger.Warnf("[client] send queue full, drop frame conn=%s user=%s", c.ConnID, c.UserID)
		return false
	}
}

// CloseSend releases the writer goroutine. Safe to call more than once;
// any Enqueue from here on is a drop.
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// WritePump drains the send queue onto the websocket and keeps the
// connection alive with pings. It owns all writes including the final
// close message.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.WS.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			if !ok {
				_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.WS.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[client] write failed conn=%s user=%s err=%v", c.ConnID, c.UserID, err)
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
