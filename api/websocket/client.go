package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// Client is a single websocket connection with its subscription set
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	subscriptions map[SubscriptionType]bool
	subMu         sync.RWMutex

	logger *zap.Logger
}

// NewClient creates a client over an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, 64),
		subscriptions: make(map[SubscriptionType]bool),
		logger:        logger,
	}
}

// IsSubscribed reports whether the client wants events of the given type
func (c *Client) IsSubscribed(t SubscriptionType) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.subscriptions[t]
}

// ReadPump reads subscribe/unsubscribe requests until the connection drops
func (c *Client) ReadPump() {
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
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(data)
	}
}

func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message")
		return
	}

	switch msg.Type {
	case "subscribe":
		var req SubscribeRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil || !validSubscription(req.Type) {
			c.sendError("invalid subscription type")
			return
		}
		c.subMu.Lock()
		c.subscriptions[req.Type] = true
		c.subMu.Unlock()
		c.sendSuccess("subscribed to " + string(req.Type))

	case "unsubscribe":
		var req SubscribeRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil || !validSubscription(req.Type) {
			c.sendError("invalid subscription type")
			return
		}
		c.subMu.Lock()
		delete(c.subscriptions, req.Type)
		c.subMu.Unlock()
		c.sendSuccess("unsubscribed from " + string(req.Type))

	default:
		c.sendError("unknown message type " + msg.Type)
	}
}

func validSubscription(t SubscriptionType) bool {
	return t == SubscribeSyncInfo || t == SubscribeMarkets
}

func (c *Client) sendError(text string) {
	c.sendTyped("error", ErrorMessage{Error: text})
}

func (c *Client) sendSuccess(text string) {
	c.sendTyped("success", SuccessMessage{Message: text})
}

func (c *Client) sendTyped(msgType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	out, err := json.Marshal(Message{Type: msgType, Payload: data})
	if err != nil {
		return
	}
	select {
	case c.send <- out:
	default:
	}
}

// WritePump forwards queued messages to the connection and keeps it alive
// with pings
func (c *Client) WritePump() {
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
