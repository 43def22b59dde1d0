// Package controller is the phone side of a room: it joins by code, forwards
// raw input and mirrors whatever state the host broadcasts.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/DoyleJ11/party-board-backend/internal/replica"
	"github.com/DoyleJ11/party-board-backend/pkg/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

var ErrRoomNotFound = errors.New("room not found")
var ErrJoinRejected = errors.New("join rejected")
var ErrNotJoined = errors.New("not joined")
var ErrClosed = errors.New("controller closed")

type Client struct {
	code   string
	conn   *websocket.Conn
	mirror replica.Mirror
	log    *zap.Logger

	mu     sync.Mutex
	slot   int
	joined bool

	acks    chan types.JoinAck
	updates chan types.GameUpdate

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// WSURL resolves a room code against the host's base URL.
func WSURL(baseURL, code string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + url.PathEscape(code)
	return u.String(), nil
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// Dial opens a link to the room. A room that does not exist yields
// ErrRoomNotFound, which is worth retrying with a corrected code.
func Dial(ctx context.Context, baseURL, code string, opts ...Option) (*Client, error) {
	target, err := WSURL(baseURL, code)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		code:    code,
		conn:    conn,
		log:     zap.NewNop(),
		slot:    -1,
		acks:    make(chan types.JoinAck, 1),
		updates: make(chan types.GameUpdate, 1),
		ctx:     cctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(zap.String("room", code))
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			c.err = err
			return
		}

		_, payload, err := types.Decode(data)
		if err != nil {
			c.log.Debug("bad frame", zap.Error(err))
			continue
		}

		switch p := payload.(type) {
		case *types.JoinAck:
			select {
			case c.acks <- *p:
			default:
			}
		case *types.GameUpdate:
			if c.mirror.Apply(*p) {
				c.notify(*p)
			}
		}
	}
}

// notify keeps only the newest update in the channel.
func (c *Client) notify(u types.GameUpdate) {
	for {
		select {
		case c.updates <- u:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}

// Join asks for a seat and waits for the host's answer.
func (c *Client) Join(ctx context.Context, name string) (int, error) {
	if err := c.write(ctx, types.MsgJoinRequest, types.JoinRequest{Name: name}); err != nil {
		return -1, err
	}

	select {
	case ack := <-c.acks:
		if ack.Status != types.JoinOK {
			return -1, fmt.Errorf("%w: %s", ErrJoinRejected, ack.Reason)
		}
		c.mu.Lock()
		c.slot, c.joined = ack.PlayerID, true
		c.mu.Unlock()
		return ack.PlayerID, nil
	case <-c.done:
		return -1, ErrClosed
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (c *Client) Roll(ctx context.Context) error {
	return c.Send(ctx, types.ActionRoll)
}

// Send forwards one raw input token. The host decides what it means.
func (c *Client) Send(ctx context.Context, action string) error {
	c.mu.Lock()
	slot, joined := c.slot, c.joined
	c.mu.Unlock()
	if !joined {
		return ErrNotJoined
	}
	return c.write(ctx, types.MsgClientInput, types.ClientInput{PlayerID: slot, Action: action})
}

func (c *Client) write(ctx context.Context, t types.MessageType, payload any) error {
	b, err := types.Encode(t, c.code, payload)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, b)
}

// Slot is the seat the host assigned, or -1.
func (c *Client) Slot() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot
}

// State is the last mirrored update.
func (c *Client) State() (types.GameUpdate, bool) { return c.mirror.Current() }

// Updates delivers the newest update; intermediate ones may be skipped.
func (c *Client) Updates() <-chan types.GameUpdate { return c.updates }

// Done is closed when the link is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the link closed. Valid after Done.
func (c *Client) Err() error { return c.err }

func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.cancel()
	<-c.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
