package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/Ashy-21/TWINK/internal/models"
	"github.com/Ashy-21/TWINK/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is a live websocket connection. It is the Subscriber the engine sees
// for that socket.
type Client struct {
	id     string
	engine *Engine
	conn   *websocket.Conn
	addr   string

	mu     sync.Mutex
	send   chan []byte
	closed bool

	session *Session
	done    chan struct{}
}

func NewClient(engine *Engine, conn *websocket.Conn, sendBuffer int, maxMessageSize int64) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}

	return &Client{
		id:     uuid.NewString(),
		engine: engine,
		conn:   conn,
		addr:   conn.RemoteAddr().String(),
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Done is closed once the client has left the relay.
func (c *Client) Done() <-chan struct{} { return c.done }

// Deliver implements Subscriber.
func (c *Client) Deliver(ev Event) error {
	return c.enqueue(ev.Data)
}

// enqueue never blocks. A client whose buffer is full is dropped, the same
// as a client that has gone away.
func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.closeSendLocked()
		logger.Warn("Client %s dropped: send buffer full", c.addr)
		return ErrSendBufferFull
	}
}

func (c *Client) closeSendLocked() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Close ends the connection; the read pump then disconnects the session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Start replays history to this client only, joins the relay, and runs the
// read and write pumps. It returns once the session is open.
func (c *Client) Start(room string, identity models.Identity, history []*models.Message) error {
	for _, msg := range history {
		sender := msg.Sender
		if sender == "" {
			sender = models.AnonymousName
		}
		ev, err := NewEvent(ChatTopic(room), models.NewChatFrame(msg.Content, sender, msg.Timestamp))
		if err != nil {
			continue
		}
		if err := c.enqueue(ev.Data); err != nil {
			break
		}
	}

	session, err := c.engine.Connect(c, room, identity)
	if err != nil {
		c.mu.Lock()
		c.closeSendLocked()
		c.mu.Unlock()
		c.conn.Close()
		close(c.done)
		return err
	}
	c.session = session

	go c.writePump()
	go c.readPump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.engine.Disconnect(c.session)
		c.mu.Lock()
		c.closeSendLocked()
		c.mu.Unlock()
		c.conn.Close()
		close(c.done)
	}()

	// Set read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				logger.Warn("Message from %s exceeded read limit", c.addr)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Error("WebSocket error from %s: %v", c.addr, err)
			}
			break
		}

		c.engine.Receive(c.session, message)
	}
}

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

			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("Write error to %s: %v", c.addr, err)
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
