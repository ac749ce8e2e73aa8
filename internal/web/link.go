package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cjeanneret/SlideGo/internal/debug"
	"github.com/cjeanneret/SlideGo/internal/hostlink"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  maxFrame,
	WriteBufferSize: maxFrame,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// linkClient is one websocket host link. Binary messages are command
// frames, text messages are legacy lines. Replies go back as binary.
type linkClient struct {
	id      string
	conn    *websocket.Conn
	sendCh  chan []byte
	done    chan struct{}
	once    sync.Once
	inbound chan<- hostlink.Packet
}

// HandleLink handles GET /link, upgrading to a websocket host link.
func (h *Handlers) HandleLink(w http.ResponseWriter, r *http.Request) {
	if h.Inbound == nil {
		http.Error(w, "controller not configured", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		debug.Error(err)
		return
	}

	c := &linkClient{
		id:      uuid.NewString(),
		conn:    conn,
		sendCh:  make(chan []byte, 16),
		done:    make(chan struct{}),
		inbound: h.Inbound,
	}
	debug.Info("Link %s connected from %s", c.id, r.RemoteAddr)
	h.Broadcaster.Publish(Event{Kind: "link", Msg: "connected", Session: c.id})

	go c.writePump()
	c.readPump()

	debug.Info("Link %s closed", c.id)
	h.Broadcaster.Publish(Event{Kind: "link", Msg: "closed", Session: c.id})
}

// send queues b for the client, dropping it when the queue is full or the
// link is gone. Called from the controller goroutine.
func (c *linkClient) send(b []byte) {
	msg := append([]byte(nil), b...)
	select {
	case <-c.done:
	case c.sendCh <- msg:
	default:
		debug.Live("Link %s: send queue full, reply dropped", c.id)
	}
}

func (c *linkClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *linkClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxFrame)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debug.Error(err)
			}
			return
		}
		if len(data) == 0 {
			continue
		}

		p := hostlink.Packet{
			Data:   data,
			Text:   mt == websocket.TextMessage,
			Source: "link " + c.id,
			Reply:  c.send,
		}
		select {
		case c.inbound <- p:
		case <-c.done:
			return
		}
	}
}

func (c *linkClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
