package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/queuelink/pkg/channel"
	"github.com/agentstation/queuelink/pkg/constants"
	"github.com/agentstation/queuelink/pkg/errors"
	"github.com/agentstation/queuelink/pkg/events"
	"github.com/agentstation/queuelink/pkg/logging"
)

const (
	// Time allowed to write a message to the server.
	writeWait = constants.WriteWait

	// Time allowed to read the next pong message from the server.
	pongWait = constants.PongWait

	// Send pings to the server with this period. Must be less than pongWait.
	pingPeriod = constants.PingPeriod

	// Maximum event frame size allowed from the server.
	maxMessageSize = constants.MaxMessageSize
)

// authFrame authenticates (or re-authenticates) the stream.
type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// WSDialer opens the event stream over a websocket.
type WSDialer struct {
	URL    string
	Dialer *websocket.Dialer
	Logger *zerolog.Logger
}

var _ channel.Dialer = (*WSDialer)(nil)

// NewWSDialer creates a dialer for the stream at url.
func NewWSDialer(url string, logger *zerolog.Logger) *WSDialer {
	return &WSDialer{
		URL:    url,
		Dialer: websocket.DefaultDialer,
		Logger: logging.Component(logger, "ws"),
	}
}

// Dial implements channel.Dialer. The token is sent both as a bearer header
// on the handshake and as the first frame.
func (d *WSDialer) Dial(ctx context.Context, token string) (channel.Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.Component(nil, "ws")
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &errors.AuthorizationExpiredError{Endpoint: d.URL, Err: err}
		}
		if ctx.Err() != nil {
			return nil, errors.NewTimeoutError("dial", "", err.Error())
		}
		return nil, errors.WrapNetwork("dial", err)
	}

	c := &wsConn{conn: conn, logger: logger, done: make(chan struct{})}
	if err := c.writeJSON(authFrame{Type: "auth", Token: token}); err != nil {
		_ = conn.Close()
		return nil, errors.WrapNetwork("authenticate stream", err)
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.pingLoop()
	return c, nil
}

// wsConn is one live event stream.
type wsConn struct {
	conn   *websocket.Conn
	logger *zerolog.Logger

	writeMu   sync.Mutex // serialises all writes (ping, auth)
	closeOnce sync.Once
	done      chan struct{}
}

// Receive implements channel.Conn.
func (c *wsConn) Receive() (events.Event, error) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return events.Event{}, errors.WrapNetwork("read event", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return events.Decode(data)
	}
}

// Reauthenticate implements channel.Reauthenticator.
func (c *wsConn) Reauthenticate(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.writeJSON(authFrame{Type: "auth", Token: token}); err != nil {
		return errors.WrapNetwork("reauthenticate stream", err)
	}
	return nil
}

// Close implements channel.Conn.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// pingLoop sends liveness pings until the connection closes.
func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}
