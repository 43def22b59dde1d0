package session

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/engine"
	"github.com/DoyleJ11/party-board-backend/internal/flavor"
	"github.com/DoyleJ11/party-board-backend/internal/history"
	"github.com/DoyleJ11/party-board-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fastRules() engine.Rules {
	r := engine.DefaultRules()
	r.CPURollDelay = time.Millisecond
	r.RollDuration = time.Millisecond
	r.MoveStep = time.Millisecond
	r.LandedDelay = time.Millisecond
	r.MinigameTick = time.Millisecond
	r.ResultsDelay = time.Millisecond
	return r
}

func newSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	cfg.Code = "12345"
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(5, 6))
	}
	s := New(context.Background(), cfg)
	t.Cleanup(s.Close)
	return s
}

// helper: receive one frame with a timeout so tests never hang
func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) (types.MessageType, any) {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			t.Fatalf("link outbox closed unexpectedly")
		}
		env, payload, err := types.Decode(b)
		require.NoError(t, err)
		return env.Type, payload
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for frame")
		return "", nil
	}
}

func recvUpdate(t *testing.T, ch <-chan []byte) *types.GameUpdate {
	t.Helper()
	typ, payload := recvFrame(t, ch, time.Second)
	require.Equal(t, types.MsgGameUpdate, typ)
	return payload.(*types.GameUpdate)
}

func recvAck(t *testing.T, ch <-chan []byte) *types.JoinAck {
	t.Helper()
	typ, payload := recvFrame(t, ch, time.Second)
	require.Equal(t, types.MsgJoinAck, typ)
	return payload.(*types.JoinAck)
}

func recvNothing(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	select {
	case b, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no frame within %v, got %s", within, b)
	case <-time.After(within):
	}
}

func attach(t *testing.T, s *Session, id string) chan []byte {
	t.Helper()
	out := make(chan []byte, 256)
	s.Inbox() <- Attach{LinkID: id, Outbox: out}
	first := recvUpdate(t, out)
	require.NotNil(t, first)
	return out
}

func view(t *testing.T, s *Session) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := s.View(ctx)
	require.NoError(t, err)
	return v
}

// phaseIs is safe to call from require.Eventually's goroutine.
func phaseIs(s *Session, want engine.Phase) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := s.View(ctx)
	return err == nil && v.State.Phase == want
}

func TestSession_JoinAcksThenBroadcasts(t *testing.T) {
	s := newSession(t, Config{})
	watcher := make(chan []byte, 16)
	s.Inbox() <- Attach{LinkID: "tv", Outbox: watcher, Display: true}
	assert.Equal(t, 0, recvUpdate(t, watcher).Version)

	phone := attach(t, s, "phone-1")
	s.Inbox() <- JoinRequest{LinkID: "phone-1", Name: "Daisy"}

	ack := recvAck(t, phone)
	assert.Equal(t, types.JoinOK, ack.Status)
	assert.Equal(t, 0, ack.PlayerID)

	u := recvUpdate(t, phone)
	assert.Equal(t, 1, u.Version)
	require.Len(t, u.Players, 1)
	assert.Equal(t, "Daisy", u.Players[0].Name)
	assert.Equal(t, 1, recvUpdate(t, watcher).Version)

	// the same link asking again keeps its seat
	s.Inbox() <- JoinRequest{LinkID: "phone-1", Name: "Daisy"}
	assert.Equal(t, 0, recvAck(t, phone).PlayerID)
	recvNothing(t, watcher, 50*time.Millisecond)
	assert.Len(t, view(t, s).State.Players, 1)
}

func TestSession_JoinRefused(t *testing.T) {
	t.Run("room full", func(t *testing.T) {
		s := newSession(t, Config{})
		ctx := context.Background()
		for range engine.MaxPlayers {
			require.NoError(t, s.Do(ctx, engine.Command{Type: engine.CmdAddCPU}))
		}

		phone := attach(t, s, "late")
		s.Inbox() <- JoinRequest{LinkID: "late", Name: "Late"}
		ack := recvAck(t, phone)
		assert.Equal(t, types.JoinFail, ack.Status)
		assert.Equal(t, "room full", ack.Reason)
		assert.Len(t, view(t, s).State.Players, engine.MaxPlayers)
	})

	t.Run("game started", func(t *testing.T) {
		s := newSession(t, Config{Rules: engine.DefaultRules()})
		phone := attach(t, s, "p1")
		s.Inbox() <- JoinRequest{LinkID: "p1", Name: "First"}
		recvAck(t, phone)
		recvUpdate(t, phone)
		require.NoError(t, s.Do(context.Background(), engine.Command{Type: engine.CmdStart}))

		late := attach(t, s, "p2")
		s.Inbox() <- JoinRequest{LinkID: "p2", Name: "Second"}
		ack := recvAck(t, late)
		assert.Equal(t, types.JoinFail, ack.Status)
		assert.Equal(t, "game already started", ack.Reason)
		assert.Len(t, view(t, s).State.Players, 1)
	})
}

func TestSession_InputUsesBoundSeat(t *testing.T) {
	s := newSession(t, Config{Rules: engine.DefaultRules()})
	attach(t, s, "a")
	attach(t, s, "b")
	s.Inbox() <- JoinRequest{LinkID: "a", Name: "A"}
	s.Inbox() <- JoinRequest{LinkID: "b", Name: "B"}
	require.NoError(t, s.Do(context.Background(), engine.Command{Type: engine.CmdStart}))

	// b pretends to be a; nothing happens
	s.Inbox() <- Input{LinkID: "b", PlayerID: 0, Action: types.ActionRoll}
	// b rolls out of turn; nothing happens
	s.Inbox() <- Input{LinkID: "b", PlayerID: 1, Action: types.ActionRoll}
	assert.Equal(t, engine.TurnStart, view(t, s).State.TurnPhase)

	s.Inbox() <- Input{LinkID: "a", PlayerID: 0, Action: types.ActionRoll}
	assert.Equal(t, engine.TurnRolling, view(t, s).State.TurnPhase)
}

func TestSession_DropSlowLinkKeepsSeat(t *testing.T) {
	s := newSession(t, Config{})
	out := make(chan []byte, 1)
	s.Inbox() <- Attach{LinkID: "slow", Outbox: out}
	// outbox now holds the attach snapshot; the ack cannot fit
	s.Inbox() <- JoinRequest{LinkID: "slow", Name: "Slowpoke"}

	v := view(t, s)
	assert.Equal(t, 0, v.Links)
	require.Len(t, v.State.Players, 1)
	assert.Equal(t, "Slowpoke", v.State.Players[0].Name)
}

func TestSession_DetachKeepsSeat(t *testing.T) {
	s := newSession(t, Config{})
	out := attach(t, s, "p")
	s.Inbox() <- JoinRequest{LinkID: "p", Name: "Gone"}
	recvAck(t, out)
	s.Inbox() <- Detach{LinkID: "p"}

	v := view(t, s)
	assert.Equal(t, 0, v.Links)
	assert.Len(t, v.State.Players, 1)

	_, open := <-drain(out)
	assert.False(t, open)
}

// drain empties ch and returns it so the caller can observe closure.
func drain(ch chan []byte) chan []byte {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return ch
			}
		default:
			return ch
		}
	}
}

func TestSession_CPUTurnRunsToMinigame(t *testing.T) {
	s := newSession(t, Config{Rules: fastRules()})
	ctx := context.Background()
	require.NoError(t, s.Do(ctx, engine.Command{Type: engine.CmdAddCPU}))
	require.NoError(t, s.Do(ctx, engine.Command{Type: engine.CmdStart}))

	require.Eventually(t, func() bool { return phaseIs(s, engine.PhaseMinigameIntro) }, 2*time.Second, 5*time.Millisecond)

	v := view(t, s)
	assert.NotZero(t, v.State.LastRoll)
	assert.Equal(t, v.State.LastRoll%engine.DefaultBoardSize, v.State.Players[0].Position)
	assert.Greater(t, v.Version, 2)
}

type stubFlavor struct{ line string }

func (f stubFlavor) ChaosEvent(context.Context, int) (flavor.ChaosEvent, error) {
	return flavor.ChaosEvent{Title: "Stub", Description: "stub"}, nil
}

func (f stubFlavor) AnnouncerLine(context.Context, string, string) (string, error) {
	return f.line, nil
}

func playOneMinigame(t *testing.T, s *Session, clock *fakeClock) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Do(ctx, engine.Command{Type: engine.CmdAddCPU}))
	require.NoError(t, s.Do(ctx, engine.Command{Type: engine.CmdSetMode, Mode: engine.ModeMinigameOnly}))
	require.NoError(t, s.Do(ctx, engine.Command{Type: engine.CmdStart}))
	require.NoError(t, s.Do(ctx, engine.Command{Type: engine.CmdMinigameReady}))
	clock.Advance(time.Minute)
}

func TestSession_FlavorReplacesAnnouncement(t *testing.T) {
	rules := fastRules()
	rules.ResultsDelay = time.Hour
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := newSession(t, Config{Rules: rules, Now: clock.Now, Flavor: stubFlavor{line: "What a finish!"}})

	playOneMinigame(t, s, clock)

	require.Eventually(t, func() bool {
		v, err := s.View(context.Background())
		return err == nil && v.State.Phase == engine.PhaseMinigameResults && v.State.Announcement == "What a finish!"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, engine.DefaultRules().StartingCoins+engine.Reward(1), view(t, s).State.Players[0].Coins)
}

func TestSession_GameOverIsRecorded(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	rec := &history.MemoryRecorder{}
	s := newSession(t, Config{Rules: fastRules(), Now: clock.Now, RoundLimit: 1, Recorder: rec})

	playOneMinigame(t, s, clock)

	require.Eventually(t, func() bool { return phaseIs(s, engine.PhaseGameOver) }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.Records()) == 1 }, 2*time.Second, 5*time.Millisecond)

	r := rec.Records()[0]
	assert.Equal(t, "12345", r.RoomCode)
	assert.Equal(t, "MINIGAME_ONLY", r.Mode)
	require.Len(t, r.Standings, 1)
	assert.True(t, r.Standings[0].Simulated)

	err := s.Do(context.Background(), engine.Command{Type: engine.CmdStart})
	assert.ErrorIs(t, err, engine.ErrGameAlreadyCompleted)
}

func TestSession_ShutdownStopsTimers(t *testing.T) {
	rules := fastRules()
	rules.CPURollDelay = 200 * time.Millisecond
	s := newSession(t, Config{Rules: rules})
	ctx := context.Background()
	require.NoError(t, s.Do(ctx, engine.Command{Type: engine.CmdAddCPU}))

	out := attach(t, s, "tv")
	require.NoError(t, s.Do(ctx, engine.Command{Type: engine.CmdStart}))
	recvUpdate(t, out)

	s.Inbox() <- Shutdown{}
	recvNothing(t, out, 400*time.Millisecond)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("session did not stop")
	}
	assert.ErrorIs(t, s.Do(ctx, engine.Command{Type: engine.CmdRoll}), ErrClosed)
}
