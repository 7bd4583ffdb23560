package livepush

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	conn          *websocket.Conn
	hub           *Hub
	log           *log.Logger
	send          chan *Frame
	authenticated atomic.Bool
	stop          chan struct{}
	stopOnce      sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, l *log.Logger) *Client {
	return &Client{
		conn: conn,
		hub:  hub,
		log:  l,
		send: make(chan *Frame, 256),
		stop: make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("push write exiting")
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(frame)
			if err != nil {
				c.log.Println("failed to serialize frame:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.hub.unregister <- c
		c.stopClient()
		c.log.Println("push read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.log.Println("error parsing frame:", err)
			continue
		}

		switch frame.Type {
		case FrameAuthenticate:
			c.handleAuthenticate(&frame)
		case FramePing:
			c.handlePing(&frame)
		default:
			// unknown types are ignored by contract
		}
	}
}

// handleAuthenticate is the post-connect handshake: a failed token
// closes the socket after the error frame flushes.
func (c *Client) handleAuthenticate(frame *Frame) {
	var auth AuthData
	if frame.Data != nil {
		if err := json.Unmarshal(frame.Data, &auth); err != nil {
			c.log.Println("bad authenticate frame:", err)
		}
	}

	session, err := c.hub.authenticate(auth.Token)
	if err != nil {
		c.log.Println("push authentication failed:", err)
		if reply, err := NewFrame(FrameAuthError, map[string]string{"error": "invalid token"}); err == nil {
			c.queueFrame(reply)
		}

		go func() {
			// let the error frame drain before tearing down
			time.Sleep(250 * time.Millisecond)
			c.stopClient()
		}()
		return
	}

	c.authenticated.Store(true)
	if reply, err := NewFrame(FrameAuthSuccess, map[string]any{"username": session.Username}); err == nil {
		c.queueFrame(reply)
	}
}

func (c *Client) handlePing(frame *Frame) {
	var ping PingData
	if frame.Data != nil {
		if err := json.Unmarshal(frame.Data, &ping); err != nil {
			c.log.Println("bad ping frame:", err)
			return
		}
	}

	if reply, err := NewFrame(FramePong, PingData{Ts: ping.Ts}); err == nil {
		c.queueFrame(reply)
	}
}

func (c *Client) queueFrame(frame *Frame) bool {
	select {
	case c.send <- frame:
	default:
		c.log.Println("failed to queue frame, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}
