// Package minigame resolves the three minigame mechanics (mash, timing,
// reaction) behind one start / input / completion contract. Callers supply
// elapsed time since start; nothing in here reads a clock.
package minigame

import (
	"errors"
	"maps"
	"math/rand/v2"
	"slices"
	"time"
)

var ErrUnknownKind = errors.New("unknown minigame kind")
var ErrNoParticipants = errors.New("minigame needs at least one participant")

type Kind string

const (
	KindMash     Kind = "MASH"
	KindTiming   Kind = "TIMING"
	KindReaction Kind = "REACTION"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Next cycles EASY -> MEDIUM -> HARD -> EASY.
func (d Difficulty) Next() Difficulty {
	switch d {
	case DifficultyEasy:
		return DifficultyMedium
	case DifficultyMedium:
		return DifficultyHard
	default:
		return DifficultyEasy
	}
}

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// PenaltyScore is the raw score given to players who never produced a valid
// timing/reaction entry.
const PenaltyScore int64 = 99999

type Descriptor struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Description  string `json:"description" yaml:"description"`
	Instructions string `json:"instructions" yaml:"instructions"`
	Kind         Kind   `json:"type" yaml:"type"`
}

type Participant struct {
	Slot       int
	Simulated  bool
	Difficulty Difficulty
}

// Result is one player's outcome. Score is mechanic specific: tap count for
// mash, distance from target (ms) for timing, reaction time (ms) for reaction.
type Result struct {
	Slot  int   `json:"playerId"`
	Score int64 `json:"score"`
	Rank  int   `json:"rank"`
}

// Game is the running sub-machine. Exactly one of Mash, Timing, Reaction is
// set, matching Kind.
type Game struct {
	Kind         Kind
	Participants []Participant

	Mash     *Mash
	Timing   *Timing
	Reaction *Reaction
}

func Start(kind Kind, players []Participant, rng *rand.Rand) (*Game, error) {
	if len(players) == 0 {
		return nil, ErrNoParticipants
	}
	g := &Game{Kind: kind, Participants: slices.Clone(players)}

	switch kind {
	case KindMash:
		g.Mash = newMash(g.Participants, rng)
	case KindTiming:
		g.Timing = newTiming(g.Participants, rng)
	case KindReaction:
		g.Reaction = newReaction(g.Participants, rng)
	default:
		return nil, ErrUnknownKind
	}
	return g, nil
}

// Advance moves internal sub-states forward to elapsed time at and plays
// simulated players' inputs that are due by then.
func (g *Game) Advance(at time.Duration) {
	switch g.Kind {
	case KindMash:
		g.Mash.advance(at)
	case KindTiming:
		g.Timing.advance(at)
	case KindReaction:
		g.Reaction.advance(at)
	}
}

// ApplyInput records one real input at elapsed time at. It reports whether the
// input changed anything. Inputs for simulated or unknown slots are refused.
func (g *Game) ApplyInput(slot int, action string, at time.Duration) bool {
	if action == "" {
		return false
	}
	p, ok := g.participant(slot)
	if !ok || p.Simulated {
		return false
	}
	g.Advance(at)

	switch g.Kind {
	case KindMash:
		return g.Mash.input(slot, at)
	case KindTiming:
		return g.Timing.input(slot, at)
	case KindReaction:
		return g.Reaction.input(slot, at)
	}
	return false
}

// Check reports the ranked results once the game is complete.
func (g *Game) Check(at time.Duration) ([]Result, bool) {
	g.Advance(at)

	switch g.Kind {
	case KindMash:
		return g.Mash.check(g.Participants, at)
	case KindTiming:
		return g.Timing.check(g.Participants, at)
	case KindReaction:
		return g.Reaction.check(g.Participants, at)
	}
	return nil, false
}

func (g *Game) participant(slot int) (Participant, bool) {
	for _, p := range g.Participants {
		if p.Slot == slot {
			return p, true
		}
	}
	return Participant{}, false
}

// Clone copies the mutable parts of g so a caller can advance the copy
// without touching the original.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Participants = slices.Clone(g.Participants)
	if g.Mash != nil {
		m := *g.Mash
		m.Counts = maps.Clone(g.Mash.Counts)
		c.Mash = &m
	}
	if g.Timing != nil {
		t := *g.Timing
		t.Stops = maps.Clone(g.Timing.Stops)
		c.Timing = &t
	}
	if g.Reaction != nil {
		r := *g.Reaction
		r.Times = maps.Clone(g.Reaction.Times)
		r.Disqualified = slices.Clone(g.Reaction.Disqualified)
		c.Reaction = &r
	}
	return &c
}
