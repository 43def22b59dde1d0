// Package session runs one room. A Session is an actor: a single goroutine
// owns the game state and everything else (links, host actions, timers,
// flavor replies) talks to it through the inbox.
package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"sync"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/engine"
	"github.com/DoyleJ11/party-board-backend/internal/flavor"
	"github.com/DoyleJ11/party-board-backend/internal/history"
	"github.com/DoyleJ11/party-board-backend/internal/replica"
	"github.com/DoyleJ11/party-board-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("session closed")

const recordTimeout = 10 * time.Second

type Msg interface{ isSessionMsg() }

// Attach registers a link. Outbox receives encoded frames; the session
// closes it when the link is dropped or the session shuts down.
type Attach struct {
	LinkID  string
	Outbox  chan []byte
	Display bool
}

func (Attach) isSessionMsg() {}

type Detach struct{ LinkID string }

func (Detach) isSessionMsg() {}

type JoinRequest struct {
	LinkID string
	Name   string
}

func (JoinRequest) isSessionMsg() {}

type Input struct {
	LinkID   string
	PlayerID int
	Action   string
}

func (Input) isSessionMsg() {}

// HostCommand is a display-side action. Reply must be buffered.
type HostCommand struct {
	Cmd   engine.Command
	Reply chan error
}

func (HostCommand) isSessionMsg() {}

type GetView struct {
	Reply chan View
}

func (GetView) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type timerFired struct {
	id    uint64
	timer engine.Timer
}

func (timerFired) isSessionMsg() {}

type flavorText struct {
	token uint64
	text  string
}

func (flavorText) isSessionMsg() {}

type View struct {
	Code    string
	Version int
	Links   int
	State   engine.State
}

type Config struct {
	Code       string
	HostToken  string
	Rules      engine.Rules
	Board      engine.Board
	RoundLimit int

	Flavor   flavor.Generator
	Recorder history.Recorder
	Logger   *zap.Logger

	Now  func() time.Time
	Rand *rand.Rand
}

type link struct {
	outbox  chan []byte
	display bool
	slot    int
	bound   bool
}

type pending struct {
	t     *time.Timer
	token uint64
}

type Session struct {
	code      string
	hostToken string

	inbox   chan Msg
	state   engine.State
	version int
	last    types.GameUpdate
	links   map[string]*link

	timers  map[uint64]pending
	timerID uint64

	flavor   flavor.Generator
	recorder history.Recorder
	log      *zap.Logger
	now      func() time.Time
	rand     *rand.Rand

	async  sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(parent context.Context, cfg Config) *Session {
	ctx, cancel := context.WithCancel(parent)

	if cfg.Board.Spaces == nil {
		cfg.Board = engine.DefaultBoard()
	}
	if cfg.Rules == (engine.Rules{}) {
		cfg.Rules = engine.DefaultRules()
	}
	if cfg.Flavor == nil {
		cfg.Flavor = flavor.Fallback{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = history.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	state := engine.NewState(cfg.Rules, cfg.Board)
	if cfg.RoundLimit > 0 {
		state.RoundLimit = cfg.RoundLimit
	}

	s := &Session{
		code:      cfg.Code,
		hostToken: cfg.HostToken,
		inbox:     make(chan Msg, 64),
		state:     state,
		last:      replica.Snapshot(state, 0),
		links:     make(map[string]*link),
		timers:    make(map[uint64]pending),
		flavor:    cfg.Flavor,
		recorder:  cfg.Recorder,
		log:       cfg.Logger.With(zap.String("room", cfg.Code)),
		now:       cfg.Now,
		rand:      cfg.Rand,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Attach:
				l := &link{outbox: msg.Outbox, display: msg.Display}
				s.links[msg.LinkID] = l
				s.send(msg.LinkID, l, s.frame(types.MsgGameUpdate, s.current()))

			case Detach:
				// The seat stays; only the link goes.
				if l, ok := s.links[msg.LinkID]; ok {
					close(l.outbox)
					delete(s.links, msg.LinkID)
				}

			case JoinRequest:
				s.join(msg)

			case Input:
				s.input(msg)

			case HostCommand:
				msg.Reply <- s.apply(msg.Cmd)

			case timerFired:
				delete(s.timers, msg.id)
				err := s.apply(engine.Command{Type: engine.CmdTimerFired, Timer: msg.timer})
				if err != nil && !errors.Is(err, engine.ErrStaleTimer) {
					s.log.Debug("timer dropped", zap.String("kind", string(msg.timer.Kind)), zap.Error(err))
				}

			case flavorText:
				if err := s.apply(engine.Command{Type: engine.CmdFlavor, Token: msg.token, Text: msg.text}); err != nil {
					s.log.Debug("flavor dropped", zap.Error(err))
				}

			case GetView:
				msg.Reply <- View{
					Code:    s.code,
					Version: s.version,
					Links:   len(s.links),
					State:   s.state.Clone(),
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) join(msg JoinRequest) {
	l, ok := s.links[msg.LinkID]
	if !ok || l.display {
		return
	}
	if l.bound {
		s.send(msg.LinkID, l, s.frame(types.MsgJoinAck, types.JoinAck{PlayerID: l.slot, Status: types.JoinOK}))
		return
	}

	slot := len(s.state.Players)
	err := s.step(engine.Command{Type: engine.CmdJoin, Name: msg.Name})
	if err != nil {
		s.log.Info("join refused", zap.String("link", msg.LinkID), zap.Error(err))
		s.send(msg.LinkID, l, s.frame(types.MsgJoinAck, types.JoinAck{PlayerID: -1, Status: types.JoinFail, Reason: joinReason(err)}))
		return
	}

	// Ack before the update so the controller knows its seat when it renders.
	l.slot, l.bound = slot, true
	s.log.Info("player joined", zap.String("link", msg.LinkID), zap.Int("slot", slot))
	s.send(msg.LinkID, l, s.frame(types.MsgJoinAck, types.JoinAck{PlayerID: slot, Status: types.JoinOK}))
	s.publish()
}

func joinReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrSessionFull):
		return "room full"
	case errors.Is(err, engine.ErrWrongPhase):
		return "game already started"
	default:
		return err.Error()
	}
}

func (s *Session) input(msg Input) {
	l, ok := s.links[msg.LinkID]
	if !ok || !l.bound {
		return
	}
	if msg.PlayerID != l.slot {
		s.log.Debug("input for another seat", zap.Int("slot", l.slot), zap.Int("claimed", msg.PlayerID))
		return
	}

	cmd := engine.Command{Type: engine.CmdMinigameInput, Slot: l.slot, Action: msg.Action}
	if msg.Action == types.ActionRoll {
		cmd.Type = engine.CmdRoll
	}
	if err := s.apply(cmd); err != nil {
		s.log.Debug("input dropped", zap.Int("slot", l.slot), zap.String("action", msg.Action), zap.Error(err))
	}
}

func (s *Session) apply(cmd engine.Command) error {
	if err := s.step(cmd); err != nil {
		return err
	}
	s.publish()
	return nil
}

// step runs cmd through the engine and, on success, carries out the side
// effects its events ask for. It does not publish.
func (s *Session) step(cmd engine.Command) error {
	events, next, err := engine.Apply(s.state, cmd, engine.Env{Now: s.now(), Rand: s.rand})
	if err != nil {
		return err
	}
	s.state = next
	s.cancelStaleTimers()

	for _, e := range events {
		switch e.Type {
		case engine.EvtTimerStarted:
			s.schedule(e.Timer)
		case engine.EvtChaosTriggered:
			s.requestChaos(e.Value)
		case engine.EvtMinigameCompleted:
			if !engine.ContainsEvent(events, engine.EvtGameCompleted) {
				s.requestAnnouncer(s.state.Players[e.Slot].Name, "won "+s.state.Minigame.Name)
			}
		case engine.EvtGameCompleted:
			s.record()
		}
	}
	return nil
}

func (s *Session) schedule(t engine.Timer) {
	s.timerID++
	id := s.timerID
	s.timers[id] = pending{
		token: t.Token,
		t: time.AfterFunc(t.After, func() {
			select {
			case s.inbox <- timerFired{id: id, timer: t}:
			case <-s.ctx.Done():
			}
		}),
	}
}

// Timers from an earlier epoch can never apply; stop them early.
func (s *Session) cancelStaleTimers() {
	for id, p := range s.timers {
		if p.token != s.state.Epoch {
			p.t.Stop()
			delete(s.timers, id)
		}
	}
}

func (s *Session) requestChaos(round int) {
	token := s.state.Epoch
	s.goAsync(func() {
		ev, err := s.flavor.ChaosEvent(s.ctx, round)
		if err != nil {
			return
		}
		s.deliverFlavor(token, ev.Announcement())
	})
}

func (s *Session) requestAnnouncer(name, event string) {
	token := s.state.Epoch
	s.goAsync(func() {
		line, err := s.flavor.AnnouncerLine(s.ctx, name, event)
		if err != nil {
			return
		}
		s.deliverFlavor(token, line)
	})
}

func (s *Session) deliverFlavor(token uint64, text string) {
	select {
	case s.inbox <- flavorText{token: token, text: text}:
	case <-s.ctx.Done():
	}
}

func (s *Session) record() {
	rec := history.FromState(s.code, s.state, s.now())
	s.goAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.recorder.Record(ctx, rec); err != nil {
			s.log.Error("record finished game", zap.Error(err))
		}
	})
}

func (s *Session) goAsync(fn func()) {
	s.async.Add(1)
	go func() {
		defer s.async.Done()
		fn()
	}()
}

func (s *Session) current() types.GameUpdate {
	u := s.last
	u.Version = s.version
	return u
}

// publish broadcasts the state if its replicated form changed.
func (s *Session) publish() {
	u := replica.Snapshot(s.state, 0)
	if reflect.DeepEqual(u, s.last) {
		return
	}
	s.last = u
	s.version++
	s.broadcast(s.frame(types.MsgGameUpdate, s.current()))
}

func (s *Session) frame(t types.MessageType, payload any) []byte {
	b, err := types.Encode(t, s.code, payload)
	if err != nil {
		s.log.Error("encode frame", zap.String("type", string(t)), zap.Error(err))
		return nil
	}
	return b
}

func (s *Session) broadcast(frame []byte) {
	for id, l := range s.links {
		s.send(id, l, frame)
	}
}

func (s *Session) send(id string, l *link, frame []byte) {
	if frame == nil {
		return
	}
	select {
	case l.outbox <- frame:
	default:
		// Link is slow/full - drop it. The seat stays.
		s.log.Warn("dropping slow link", zap.String("link", id))
		close(l.outbox)
		delete(s.links, id)
	}
}

func (s *Session) shutdown() {
	s.cancel()
	for id, p := range s.timers {
		p.t.Stop()
		delete(s.timers, id)
	}
	for id, l := range s.links {
		close(l.outbox)
		delete(s.links, id)
	}
	s.async.Wait()
	s.log.Info("session closed")
}

// Inbox exposes the inbox so the transport and tests can send messages.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Code() string      { return s.code }
func (s *Session) HostToken() string { return s.hostToken }

// Done is closed once the actor has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Send delivers msg unless the session is gone or ctx ends first.
func (s *Session) Send(ctx context.Context, msg Msg) error {
	select {
	case s.inbox <- msg:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs a host command and waits for the engine's verdict.
func (s *Session) Do(ctx context.Context, cmd engine.Command) error {
	reply := make(chan error, 1)
	if err := s.Send(ctx, HostCommand{Cmd: cmd, Reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := s.Send(ctx, GetView{Reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Close stops the actor and waits for it to finish.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}
