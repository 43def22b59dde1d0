package replica

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/engine"
	"github.com/DoyleJ11/party-board-backend/pkg/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lobby(t *testing.T) engine.State {
	t.Helper()
	env := engine.Env{Now: time.Unix(0, 0), Rand: rand.New(rand.NewPCG(3, 4))}
	s := engine.NewState(engine.DefaultRules(), engine.DefaultBoard())
	var err error
	_, s, err = engine.Apply(s, engine.Command{Type: engine.CmdJoin, Name: "Peach"}, env)
	require.NoError(t, err)
	_, s, err = engine.Apply(s, engine.Command{Type: engine.CmdAddCPU}, env)
	require.NoError(t, err)
	return s
}

func TestSnapshot(t *testing.T) {
	s := lobby(t)
	got := Snapshot(s, 7)

	want := types.GameUpdate{
		Version:            7,
		Phase:              "LOBBY",
		TurnPhase:          "TURN_START",
		Mode:               "BOARD_GAME",
		CurrentPlayerIndex: 0,
		Round:              1,
		RoundLimit:         engine.DefaultRoundLimit,
		Announcement:       "Welcome to Chaos Board!",
		Players: []types.PlayerState{
			{ID: 0, Name: "Peach", Color: "#ef4444", Avatar: "🦁", Coins: 10},
			{ID: 1, Name: "CPU 2", Color: "#3b82f6", Avatar: "🤖", Coins: 10, IsCPU: true, Difficulty: "EASY"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshot_WireShape(t *testing.T) {
	s := lobby(t)
	desc, _ := engine.CatalogEntry("neon_reflex")
	s.Minigame = &desc

	b, err := types.Encode(types.MsgGameUpdate, "12345", Snapshot(s, 1))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "GAME_UPDATE", raw["type"])
	assert.Equal(t, "12345", raw["roomCode"])

	payload := raw["payload"].(map[string]any)
	for _, key := range []string{"phase", "turnPhase", "players", "currentPlayerIndex", "currentMinigame"} {
		assert.Contains(t, payload, key)
	}
	assert.Equal(t, "REACTION", payload["currentMinigame"].(map[string]any)["type"])
}

func TestSnapshot_ProgressOnlyWhilePlaying(t *testing.T) {
	s := lobby(t)
	env := engine.Env{Now: time.UnixMilli(5000), Rand: rand.New(rand.NewPCG(3, 4))}
	_, s, err := engine.Apply(s, engine.Command{Type: engine.CmdStart}, env)
	require.NoError(t, err)
	assert.Nil(t, Snapshot(s, 1).Progress)

	desc, _ := engine.CatalogEntry("turbo_taps")
	s.Minigame = &desc
	s.Phase = engine.PhaseMinigameIntro
	_, s, err = engine.Apply(s, engine.Command{Type: engine.CmdMinigameReady}, env)
	require.NoError(t, err)

	u := Snapshot(s, 2)
	require.NotNil(t, u.Progress)
	assert.Equal(t, int64(5000), u.Progress.StartedAt)
	assert.Equal(t, map[int]int{0: 0, 1: 0}, u.Progress.Taps)
}

func TestHostView(t *testing.T) {
	s := lobby(t)
	s.Players[1].Stars = 1

	v := HostView(s, 3, "54321", 2)
	assert.Equal(t, "54321", v.RoomCode)
	assert.Equal(t, 3, v.Version)
	assert.Len(t, v.Board, engine.DefaultBoardSize)
	assert.Equal(t, "STAR", v.Board[12].Type)
	require.Len(t, v.Standings, 2)
	assert.Equal(t, 1, v.Standings[0].ID)
}

func TestMirror_DiscardsOlderVersions(t *testing.T) {
	var m Mirror
	_, ok := m.Current()
	assert.False(t, ok)

	assert.True(t, m.Apply(types.GameUpdate{Version: 0, Phase: "LOBBY"}))
	assert.True(t, m.Apply(types.GameUpdate{Version: 4, Phase: "BOARD"}))
	assert.False(t, m.Apply(types.GameUpdate{Version: 3, Phase: "LOBBY"}))
	assert.True(t, m.Apply(types.GameUpdate{Version: 4, Phase: "BOARD", Announcement: "again"}))

	cur, ok := m.Current()
	require.True(t, ok)
	assert.Equal(t, "BOARD", cur.Phase)
	assert.Equal(t, "again", cur.Announcement)
	assert.Equal(t, 4, m.Version())
}
