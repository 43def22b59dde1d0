// Package hub is the room directory: an actor mapping 5-digit room codes to
// running sessions.
package hub

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/DoyleJ11/party-board-backend/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoFreeCode = errors.New("no free room code")
var ErrHubClosed = errors.New("hub closed")

const (
	codeMin         = 10000
	codeMax         = 99999
	maxCodeAttempts = 32
)

// GenerateCode draws a uniform code in 10000..99999.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", codeMin+n.Int64()), nil
}

type HubMsg interface{ isHubMsg() }

type Created struct {
	Session *session.Session
	Err     error
}

type CreateRoom struct {
	Reply chan Created
}

type GetRoom struct {
	Code  string
	Reply chan *session.Session
}

type RemoveRoom struct {
	Code  string
	Reply chan bool
}

type CountRooms struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (CountRooms) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

type Option func(*Hub)

// WithCodeGenerator swaps the room code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(h *Hub) { h.newCode = gen }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Hub) { h.log = l }
}

type Hub struct {
	inbox    chan HubMsg
	rooms    map[string]*session.Session
	template session.Config
	newCode  func() (string, error)
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHub starts the directory. Every room it creates starts from template;
// Code and HostToken are filled in per room.
func NewHub(parent context.Context, template session.Config, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		rooms:    make(map[string]*session.Session),
		template: template,
		newCode:  GenerateCode,
		log:      zap.NewNop(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.template.Logger == nil {
		h.template.Logger = h.log
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				s, err := h.create()
				msg.Reply <- Created{Session: s, Err: err}

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // May be nil

			case RemoveRoom:
				s, ok := h.rooms[msg.Code]
				if ok {
					delete(h.rooms, msg.Code)
					s.Close()
					h.log.Info("room removed", zap.String("room", msg.Code))
				}
				msg.Reply <- ok

			case CountRooms:
				msg.Reply <- len(h.rooms)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) create() (*session.Session, error) {
	for range maxCodeAttempts {
		code, err := h.newCode()
		if err != nil {
			return nil, err
		}
		if _, taken := h.rooms[code]; taken {
			h.log.Debug("collision on code, regenerating", zap.String("room", code))
			continue
		}

		cfg := h.template
		cfg.Code = code
		cfg.HostToken = uuid.NewString()
		s := session.New(h.ctx, cfg)
		h.rooms[code] = s
		h.log.Info("room created", zap.String("room", code))
		return s, nil
	}
	return nil, ErrNoFreeCode
}

func (h *Hub) shutdown() {
	h.cancel()
	for code, s := range h.rooms {
		s.Close()
		delete(h.rooms, code)
	}
}

// Create opens a new room.
func (h *Hub) Create(ctx context.Context) (*session.Session, error) {
	reply := make(chan Created, 1)
	if err := h.send(ctx, CreateRoom{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case c := <-reply:
		return c.Session, c.Err
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Get returns the room for code, or nil.
func (h *Hub) Get(ctx context.Context, code string) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if err := h.send(ctx, GetRoom{Code: code, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Remove shuts the room down and frees its code. It reports whether the
// room existed.
func (h *Hub) Remove(ctx context.Context, code string) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.send(ctx, RemoveRoom{Code: code, Reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-h.done:
		return false, ErrHubClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (h *Hub) Count(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	if err := h.send(ctx, CountRooms{Reply: reply}); err != nil {
		return 0, err
	}
	select {
	case n := <-reply:
		return n, nil
	case <-h.done:
		return 0, ErrHubClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close shuts every room down and waits for the hub to stop.
func (h *Hub) Close() {
	h.cancel()
	<-h.done
}

func (h *Hub) send(ctx context.Context, msg HubMsg) error {
	select {
	case h.inbox <- msg:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
