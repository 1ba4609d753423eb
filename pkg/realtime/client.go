package realtime

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// sendBuffer bounds per-client queueing before the hub declares
	// the client slow and drops it
	sendBuffer = 32
)

// clientCommand is what clients may send upstream: subscribe and
// unsubscribe requests for named channels.
type clientCommand struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

// Client is one websocket connection attached to the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	// channels the client asked for; recorded but not yet used to
	// filter delivery (see the Hub doc comment)
	subscriptions map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan Message, sendBuffer),
		subscriptions: make(map[string]struct{}),
	}
}

// readPump consumes client messages until the connection drops,
// keeping the read deadline fresh via pongs and recording
// subscription changes.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.WithError(err).Debug("Websocket read failed")
			}
			return
		}

		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}

		switch cmd.Action {
		case "subscribe":
			if cmd.Channel != "" {
				c.subscriptions[cmd.Channel] = struct{}{}
			}
		case "unsubscribe":
			delete(c.subscriptions, cmd.Channel)
		}
	}
}

// writePump pushes hub messages and periodic pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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
