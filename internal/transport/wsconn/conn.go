// Package wsconn adapts a gorilla websocket connection to the transport
// Target and Source contracts. Each text frame carries one wire string.
package wsconn

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/HsiangNianian/simid-bridge/internal/transport"
)

const writeWait = 10 * time.Second

type Conn struct {
	transport.Fanout

	conn *websocket.Conn
	log  *zap.Logger

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

func New(conn *websocket.Conn, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	return &Conn{conn: conn, log: log}
}

// Dial opens a client connection, sending authToken as a bearer token
// when set.
func Dial(ctx context.Context, url, authToken string, log *zap.Logger) (*Conn, error) {
	header := http.Header{}
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, &DialError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	return New(conn, log), nil
}

// DialError reports a handshake refused by the server.
type DialError struct {
	StatusCode int
	Err        error
}

func (e *DialError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Err.Error()
}

func (e *DialError) Unwrap() error {
	return e.Err
}

func (c *Conn) Post(raw string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.isClosed() {
		return transport.ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, []byte(raw))
}

// Run reads frames and hands them to subscribers until the connection
// fails or ctx ends. A normal close returns nil.
func (c *Conn) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.isClosed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if kind != websocket.TextMessage {
			c.log.Debug("ignore non-text frame", zap.Int("frame_type", kind))
			continue
		}
		c.Deliver(string(data))
	}
}

func (c *Conn) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) isClosed() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}
