// Package replica turns host state into the wire snapshot and keeps the
// controller-side copy of it.
package replica

import (
	"slices"
	"sync"

	"github.com/DoyleJ11/party-board-backend/internal/engine"
	"github.com/DoyleJ11/party-board-backend/internal/minigame"
	"github.com/DoyleJ11/party-board-backend/pkg/types"
)

// Snapshot builds the GAME_UPDATE payload for s at the given version.
func Snapshot(s engine.State, version int) types.GameUpdate {
	u := types.GameUpdate{
		Version:            version,
		Phase:              string(s.Phase),
		TurnPhase:          string(s.TurnPhase),
		Mode:               string(s.Mode),
		Players:            players(s.Players),
		CurrentPlayerIndex: s.CurrentPlayer,
		Round:              s.Round,
		RoundLimit:         s.RoundLimit,
		Announcement:       s.Announcement,
		LastRoll:           s.LastRoll,
	}

	if s.Minigame != nil {
		u.CurrentMinigame = &types.Minigame{
			ID:           s.Minigame.ID,
			Name:         s.Minigame.Name,
			Description:  s.Minigame.Description,
			Instructions: s.Minigame.Instructions,
			Type:         string(s.Minigame.Kind),
		}
	}

	for _, r := range s.LastResults {
		u.Results = append(u.Results, types.Result{PlayerID: r.Slot, Score: r.Score, Rank: r.Rank})
	}

	if s.Phase == engine.PhaseMinigamePlay && s.Game != nil {
		u.Progress = progress(s.Game)
		u.Progress.StartedAt = s.MinigameStartedAt.UnixMilli()
	}
	return u
}

// HostView adds what only the shared display needs.
func HostView(s engine.State, version int, code string, links int) types.HostView {
	v := types.HostView{
		GameUpdate: Snapshot(s, version),
		RoomCode:   code,
		Standings:  players(engine.Standings(s)),
		Links:      links,
	}
	for _, sp := range s.Board.Spaces {
		v.Board = append(v.Board, types.Space{
			ID:   sp.ID,
			Type: string(sp.Type),
			X:    sp.X,
			Y:    sp.Y,
			Next: slices.Clone(sp.Next),
		})
	}
	return v
}

func players(ps []engine.Player) []types.PlayerState {
	out := make([]types.PlayerState, 0, len(ps))
	for _, p := range ps {
		out = append(out, types.PlayerState{
			ID:         p.Slot,
			Name:       p.Name,
			Color:      p.Color,
			Avatar:     p.Avatar,
			Coins:      p.Coins,
			Stars:      p.Stars,
			Position:   p.Position,
			IsCPU:      p.Simulated,
			Difficulty: string(p.Difficulty),
		})
	}
	return out
}

func progress(g *minigame.Game) *types.MinigameStatus {
	st := &types.MinigameStatus{}
	switch g.Kind {
	case minigame.KindMash:
		st.Taps = make(map[int]int, len(g.Mash.Counts))
		for slot, n := range g.Mash.Counts {
			st.Taps[slot] = n
		}
	case minigame.KindTiming:
		for slot := range g.Timing.Stops {
			st.Stopped = append(st.Stopped, slot)
		}
		slices.Sort(st.Stopped)
	case minigame.KindReaction:
		st.Signal = string(g.Reaction.State)
		for slot := range g.Reaction.Times {
			st.Entered = append(st.Entered, slot)
		}
		st.Entered = append(st.Entered, g.Reaction.Disqualified...)
		slices.Sort(st.Entered)
	}
	return st
}

// Mirror is the controller's read-only copy of the host state. It is safe for
// use from the link reader and a render loop at the same time.
type Mirror struct {
	mu     sync.RWMutex
	update types.GameUpdate
	seen   bool
}

// Apply replaces the held state with u. Updates older than the held version
// are dropped and Apply reports false.
func (m *Mirror) Apply(u types.GameUpdate) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen && u.Version < m.update.Version {
		return false
	}
	m.update = u
	m.seen = true
	return true
}

// Current returns the last applied update and whether there is one.
func (m *Mirror) Current() (types.GameUpdate, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.update, m.seen
}

func (m *Mirror) Version() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.update.Version
}
