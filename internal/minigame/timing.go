package minigame

import (
	"math/rand/v2"
	"time"
)

const (
	TimingTarget  = 5000 * time.Millisecond
	TimingCeiling = 10500 * time.Millisecond

	minSimulatedPress = 1000 * time.Millisecond
)

// Timing lets each player stop a stopwatch once; closest to the target wins.
type Timing struct {
	Stops map[int]time.Duration

	planned map[int]time.Duration
}

func newTiming(players []Participant, rng *rand.Rand) *Timing {
	t := &Timing{
		Stops:   make(map[int]time.Duration, len(players)),
		planned: make(map[int]time.Duration),
	}
	for _, p := range players {
		if !p.Simulated {
			continue
		}
		spread := tierFor(p.Difficulty).timingError
		t.planned[p.Slot] = max(minSimulatedPress, TimingTarget+between(rng, -spread, spread))
	}
	return t
}

func (t *Timing) advance(at time.Duration) {
	for slot, press := range t.planned {
		if _, done := t.Stops[slot]; done {
			continue
		}
		if press <= at && press <= TimingCeiling {
			t.Stops[slot] = press
		}
	}
}

func (t *Timing) input(slot int, at time.Duration) bool {
	if at > TimingCeiling {
		return false
	}
	if _, done := t.Stops[slot]; done {
		return false
	}
	t.Stops[slot] = at
	return true
}

func (t *Timing) check(players []Participant, at time.Duration) ([]Result, bool) {
	if len(t.Stops) < len(players) && at < TimingCeiling {
		return nil, false
	}
	entries := make([]Entry, 0, len(players))
	for _, p := range players {
		score := PenaltyScore
		if stop, ok := t.Stops[p.Slot]; ok {
			score = (stop - TimingTarget).Abs().Milliseconds()
		}
		entries = append(entries, Entry{Slot: p.Slot, Score: score, Badness: score})
	}
	return Rank(entries), true
}
