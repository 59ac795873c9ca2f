package sockets

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Connection interface {
	Dial(ctx context.Context, url, subprotocol string) error
	Send(msg Msg) error
	io.Closer
}

type Conn struct {
	mu               sync.Mutex
	ws               *websocket.Conn
	sslSkipVerify    bool
	closed           bool
	pingIntervalSecs int
	onError          func(err error)
	onMessage        func([]byte, Connection)
	onConnected      func(Connection)
	pingMsg          []byte
}

func New(opts ...func(*Conn)) Connection {
	c := &Conn{closed: true}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Msg is the message structure.
type Msg struct {
	Body []byte
}

// Closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ws != nil {
		return c.ws.Close()
	}
	return nil
}

func (c *Conn) fail(err error) {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	if c.ws != nil {
		c.ws.Close()
	}
	c.mu.Unlock()
	if !alreadyClosed && c.onError != nil {
		c.onError(err)
	}
}

func (c *Conn) Send(msg Msg) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("closed connection")
	}
	err := c.ws.WriteMessage(websocket.TextMessage, msg.Body)
	c.mu.Unlock()
	if err != nil {
		c.fail(err)
		return err
	}
	return nil
}

func (c *Conn) Dial(ctx context.Context, url, subProtocol string) error {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: c.sslSkipVerify,
		},
	}
	if subProtocol != "" {
		dialer.Subprotocols = []string{subProtocol}
	}
	conn, res, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	if res != nil && res.Body != nil {
		res.Body.Close()
	}

	c.mu.Lock()
	c.ws = conn
	c.closed = false
	c.mu.Unlock()

	if c.onConnected != nil {
		go c.onConnected(c)
	}
	go c.readLoop(conn)
	c.setupPing()
	return nil
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		if c.onMessage != nil {
			c.onMessage(msg, c)
		}
	}
}

func (c *Conn) setupPing() {
	if c.pingIntervalSecs <= 0 || len(c.pingMsg) == 0 {
		return
	}
	ticker := time.NewTicker(time.Second * time.Duration(c.pingIntervalSecs))
	go func() {
		defer ticker.Stop()
		for range ticker.C {
			if c.Send(Msg{Body: c.pingMsg}) != nil {
				return
			}
		}
	}()
}
