package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tasksync/internal/realtime"
)

const (
	// Time allowed to write one message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period; must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// client adapts one websocket connection to realtime.Conn. A single
// writer goroutine owns the websocket writer; Send only queues on the
// buffered channel so broadcasts never block on a slow peer.
type client struct {
	logger zerolog.Logger
	conn   *websocket.Conn
	userID string

	send      chan realtime.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(logger zerolog.Logger, conn *websocket.Conn, userID string, sendBuffer int) *client {
	return &client{
		logger: logger.With().Str("user_id", userID).Logger(),
		conn:   conn,
		userID: userID,
		send:   make(chan realtime.Event, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *client) Send(event realtime.Event) error {
	select {
	case <-c.done:
		return errConnClosed
	case c.send <- event:
		return nil
	default:
		// The peer is not draining its socket. Dropping is safe for
		// full-replace pushes: the next broadcast carries the whole
		// state again.
		return errSendBufferFull
	}
}

func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send channel into the websocket and keeps the
// connection alive with pings. It owns the websocket writer and closes
// the underlying connection on the way out, which also unblocks the
// read loop.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteJSON(event)
			if err != nil {
				c.logger.Debug().
					Err(err).
					Msg("failed to write event")
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
