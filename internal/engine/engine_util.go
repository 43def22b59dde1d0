package engine

import (
	"slices"
	"time"

	"github.com/DoyleJ11/party-board-backend/internal/minigame"
)

const DefaultRoundLimit = 10

func DefaultRules() Rules {
	return Rules{
		StartingCoins: 10,
		CoinReward:    3,
		TrapPenalty:   5,
		StarCost:      50,

		CPURollDelay: 1500 * time.Millisecond,
		RollDuration: 1100 * time.Millisecond,
		MoveStep:     400 * time.Millisecond,
		LandedDelay:  2000 * time.Millisecond,
		MinigameTick: 50 * time.Millisecond,
		ResultsDelay: 3000 * time.Millisecond,
	}
}

func NewState(rules Rules, board Board) State {
	return State{
		Phase:        PhaseLobby,
		TurnPhase:    TurnStart,
		Mode:         ModeBoard,
		Players:      []Player{},
		Round:        1,
		RoundLimit:   DefaultRoundLimit,
		Rules:        rules,
		Board:        board,
		Announcement: "Welcome to Chaos Board!",
	}
}

// Clone copies everything Apply mutates. The board and descriptor are shared.
func (s State) Clone() State {
	c := s
	c.Players = slices.Clone(s.Players)
	c.LastResults = slices.Clone(s.LastResults)
	c.Game = s.Game.Clone()
	return c
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// Standings orders players by stars, then coins, then join order.
func Standings(s State) []Player {
	out := slices.Clone(s.Players)
	slices.SortStableFunc(out, func(a, b Player) int {
		if a.Stars != b.Stars {
			return b.Stars - a.Stars
		}
		if a.Coins != b.Coins {
			return b.Coins - a.Coins
		}
		return a.Slot - b.Slot
	})
	return out
}

// Catalog is the set of minigames a round can draw from.
var Catalog = []minigame.Descriptor{
	{
		ID:           "turbo_taps",
		Name:         "Turbo Taps",
		Description:  "Mash the button as fast as you can!",
		Instructions: "Tap A repeatedly!",
		Kind:         minigame.KindMash,
	},
	{
		ID:           "cosmic_count",
		Name:         "Cosmic Count",
		Description:  "Stop the timer at exactly 5.00 seconds.",
		Instructions: "Tap A to stop. Timer hides at 3s!",
		Kind:         minigame.KindTiming,
	},
	{
		ID:           "neon_reflex",
		Name:         "Neon Reflex",
		Description:  "Wait for the screen to turn GREEN, then tap!",
		Instructions: "Don't tap too early!",
		Kind:         minigame.KindReaction,
	},
}

// CatalogEntry looks a minigame up by id.
func CatalogEntry(id string) (minigame.Descriptor, bool) {
	for _, d := range Catalog {
		if d.ID == id {
			return d, true
		}
	}
	return minigame.Descriptor{}, false
}
