package minigame

import (
	"math/rand/v2"
	"slices"
	"time"
)

const (
	ReactionWaitMin = 2000 * time.Millisecond
	ReactionWaitMax = 6000 * time.Millisecond
	ReactionTimeout = 5000 * time.Millisecond
)

type ReactionState string

const (
	ReactionWait ReactionState = "WAIT"
	ReactionGo   ReactionState = "GO"
)

// Reaction holds in WAIT for a random delay, then switches to GO. Tapping
// during WAIT disqualifies; fastest tap after GO wins.
type Reaction struct {
	State   ReactionState
	WaitFor time.Duration // elapsed time at which GO starts

	Times        map[int]time.Duration // reaction time measured from GO
	Disqualified []int                 // in the order players jumped

	delays map[int]time.Duration
}

func newReaction(players []Participant, rng *rand.Rand) *Reaction {
	r := &Reaction{
		State:   ReactionWait,
		WaitFor: between(rng, ReactionWaitMin, ReactionWaitMax),
		Times:   make(map[int]time.Duration, len(players)),
		delays:  make(map[int]time.Duration),
	}
	for _, p := range players {
		if p.Simulated {
			t := tierFor(p.Difficulty)
			r.delays[p.Slot] = between(rng, t.reactMin, t.reactMax)
		}
	}
	return r
}

func (r *Reaction) entered(slot int) bool {
	_, ok := r.Times[slot]
	return ok || slices.Contains(r.Disqualified, slot)
}

func (r *Reaction) advance(at time.Duration) {
	if r.State == ReactionWait && at >= r.WaitFor {
		r.State = ReactionGo
	}
	if r.State != ReactionGo {
		return
	}
	since := at - r.WaitFor
	for slot, d := range r.delays {
		if !r.entered(slot) && d <= since && d <= ReactionTimeout {
			r.Times[slot] = d
		}
	}
}

func (r *Reaction) input(slot int, at time.Duration) bool {
	if r.entered(slot) {
		return false
	}
	if r.State == ReactionWait {
		r.Disqualified = append(r.Disqualified, slot)
		return true
	}
	since := at - r.WaitFor
	if since > ReactionTimeout {
		return false
	}
	r.Times[slot] = since
	return true
}

func (r *Reaction) check(players []Participant, at time.Duration) ([]Result, bool) {
	everyone := true
	for _, p := range players {
		if !r.entered(p.Slot) {
			everyone = false
			break
		}
	}
	timedOut := r.State == ReactionGo && at-r.WaitFor >= ReactionTimeout
	if !everyone && !timedOut {
		return nil, false
	}

	entries := make([]Entry, 0, len(players))
	var silent []Entry
	for _, p := range players {
		if t, ok := r.Times[p.Slot]; ok {
			ms := t.Milliseconds()
			entries = append(entries, Entry{Slot: p.Slot, Score: ms, Badness: ms})
		} else if !slices.Contains(r.Disqualified, p.Slot) {
			silent = append(silent, Entry{Slot: p.Slot, Score: PenaltyScore, Badness: PenaltyScore})
		}
	}
	for _, slot := range r.Disqualified {
		entries = append(entries, Entry{Slot: slot, Score: PenaltyScore, Badness: PenaltyScore})
	}
	entries = append(entries, silent...)
	return Rank(entries), true
}
