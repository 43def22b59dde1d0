// Package ws carries controller and display links over WebSocket. It only
// moves bytes: every decoded message goes to the room's inbox.
package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/hub"
	"github.com/DoyleJ11/party-board-backend/internal/session"
	"github.com/DoyleJ11/party-board-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	// A link that stops answering pings for this long is dropped.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	OutboxSize   int
	// OriginPatterns is passed to websocket.Accept. Empty means same origin.
	OriginPatterns []string
	Logger         *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = 32
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Handler serves GET /ws/{code}. ?role=display attaches a read-only link.
func Handler(h *hub.Hub, cfg Config) http.HandlerFunc {
	cfg = cfg.withDefaults()

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		s, err := h.Get(r.Context(), code)
		if err != nil {
			http.Error(w, "directory unavailable", http.StatusServiceUnavailable)
			return
		}
		if s == nil {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: cfg.OriginPatterns})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		l := &linkConn{
			id:      uuid.NewString(),
			display: r.URL.Query().Get("role") == "display",
			conn:    conn,
			room:    s,
			cfg:     cfg,
			log:     cfg.Logger.With(zap.String("room", code)),
		}
		l.serve(r.Context())
	}
}

type linkConn struct {
	id      string
	display bool
	conn    *websocket.Conn
	room    *session.Session
	cfg     Config
	log     *zap.Logger
}

func (l *linkConn) serve(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	out := make(chan []byte, l.cfg.OutboxSize)
	if err := l.room.Send(ctx, session.Attach{LinkID: l.id, Outbox: out, Display: l.display}); err != nil {
		return
	}
	l.log.Info("link attached", zap.String("link", l.id), zap.Bool("display", l.display))
	defer func() {
		dctx, dcancel := context.WithTimeout(context.Background(), time.Second)
		defer dcancel()
		_ = l.room.Send(dctx, session.Detach{LinkID: l.id})
		l.log.Info("link detached", zap.String("link", l.id))
	}()

	go l.writeLoop(ctx, cancel, out)
	go l.heartbeat(ctx, cancel)
	l.readLoop(ctx)
}

// writeLoop drains the outbox. The session closes the outbox when it drops
// the link; the connection goes with it.
func (l *linkConn) writeLoop(ctx context.Context, cancel context.CancelFunc, out <-chan []byte) {
	defer cancel()
	for frame := range out {
		wctx, wcancel := context.WithTimeout(ctx, l.cfg.WriteTimeout)
		err := l.conn.Write(wctx, websocket.MessageText, frame)
		wcancel()
		if err != nil {
			l.log.Debug("write failed", zap.String("link", l.id), zap.Error(err))
			return
		}
	}
	l.conn.Close(websocket.StatusGoingAway, "link dropped")
}

func (l *linkConn) heartbeat(ctx context.Context, cancel context.CancelFunc) {
	every := l.cfg.ReadTimeout / 2
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, every)
			err := l.conn.Ping(pctx)
			pcancel()
			if err != nil {
				l.log.Debug("ping failed", zap.String("link", l.id), zap.Error(err))
				cancel()
				return
			}
		}
	}
}

func (l *linkConn) readLoop(ctx context.Context) {
	for {
		_, data, err := l.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					l.log.Debug("read failed", zap.String("link", l.id), zap.Error(err))
				}
			}
			return
		}

		_, payload, err := types.Decode(data)
		if err != nil {
			l.log.Debug("bad frame", zap.String("link", l.id), zap.Error(err))
			continue
		}

		var msg session.Msg
		switch p := payload.(type) {
		case *types.JoinRequest:
			msg = session.JoinRequest{LinkID: l.id, Name: p.Name}
		case *types.ClientInput:
			msg = session.Input{LinkID: l.id, PlayerID: p.PlayerID, Action: p.Action}
		default:
			continue
		}
		if err := l.room.Send(ctx, msg); err != nil {
			return
		}
	}
}
