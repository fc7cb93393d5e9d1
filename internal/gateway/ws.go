package gateway

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 256
	maxMessageSize    = MaxAvatarSize + 1024

	writeWait  = 10 * time.Second
	pongWait   = 120 * time.Second
	pingPeriod = 30 * time.Second
)

// SessionCookie carries the signed token set by the HTTP login.
const SessionCookie = "session_token"

var upgrader = &websocket.Upgrader{ReadBufferSize: socketBufferSize, WriteBufferSize: socketBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var (
	errClientClosed = errors.New("client closed")
	errSlowClient   = errors.New("client send buffer full")
)

type outbound struct {
	data   []byte
	binary bool
}

// client is the websocket Conn of one session.
type client struct {
	socket *websocket.Conn

	// receive holds frames waiting for the writer.
	receive chan outbound
	done    chan struct{}
	once    sync.Once
}

func newClient(socket *websocket.Conn) *client {
	return &client{
		socket:  socket,
		receive: make(chan outbound, messageBufferSize),
		done:    make(chan struct{}),
	}
}

func (c *client) Send(data []byte, binary bool) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.receive <- outbound{data: data, binary: binary}:
		return nil
	default:
		return errSlowClient
	}
}

func (c *client) Close() {
	c.once.Do(func() {
		close(c.done)
		c.socket.Close()
	})
}

func (c *client) write() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case msg := <-c.receive:
			kind := websocket.TextMessage
			if msg.binary {
				kind = websocket.BinaryMessage
			}
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(kind, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) read(ctx context.Context, g *Gateway, s *Session) {
	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, data, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] session %s read: %v", s.ID, err)
			}
			return
		}
		switch kind {
		case websocket.TextMessage:
			err = s.send(g.Dispatch(ctx, s, data))
		case websocket.BinaryMessage:
			err = c.Send(g.DispatchBinary(ctx, s, data), true)
		}
		if err != nil {
			log.Printf("[ws] session %s reply: %v", s.ID, err)
			return
		}
	}
}

// tokenAccount reads a pre-authentication token from the query or the
// session cookie.
func (g *Gateway) tokenAccount(req *http.Request) (int64, bool) {
	token := req.URL.Query().Get("token")
	if token == "" {
		if cookie, err := req.Cookie(SessionCookie); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return 0, false
	}
	id, err := g.tokens.Verify(token)
	if err != nil {
		log.Printf("[ws] ignoring token: %v", err)
		return 0, false
	}
	return id, true
}

// ServeHTTP upgrades the request and runs the session until the socket
// closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	accountID, authed := g.tokenAccount(req)
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Println("[ws] upgrade:", err)
		return
	}
	// Requests run to completion even if the peer goes away mid-dispatch.
	ctx := context.WithoutCancel(req.Context())

	c := newClient(socket)
	s := g.Connect(c)
	defer g.Disconnect(s)
	go c.write()

	if authed {
		if _, err := g.Bind(ctx, s, accountID); err != nil {
			log.Printf("[ws] session %s pre-auth for account %d: %v", s.ID, accountID, err)
		}
	}
	c.read(ctx, g, s)
}
