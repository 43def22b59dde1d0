package minigame

import (
	"math/rand/v2"
	"time"
)

const MashDuration = 10 * time.Second

// Mash counts taps until the countdown runs out. Most taps wins.
type Mash struct {
	Counts map[int]int

	// per simulated slot, the fixed interval between its taps
	intervals map[int]time.Duration
}

func newMash(players []Participant, rng *rand.Rand) *Mash {
	m := &Mash{
		Counts:    make(map[int]int, len(players)),
		intervals: make(map[int]time.Duration),
	}
	for _, p := range players {
		m.Counts[p.Slot] = 0
		if p.Simulated {
			t := tierFor(p.Difficulty)
			m.intervals[p.Slot] = between(rng, t.mashMin, t.mashMax)
		}
	}
	return m
}

func (m *Mash) Remaining(at time.Duration) time.Duration {
	return max(MashDuration-at, 0)
}

func (m *Mash) advance(at time.Duration) {
	at = min(at, MashDuration)
	for slot, every := range m.intervals {
		m.Counts[slot] = int(at / every)
	}
}

func (m *Mash) input(slot int, at time.Duration) bool {
	if at >= MashDuration {
		return false
	}
	m.Counts[slot]++
	return true
}

func (m *Mash) check(players []Participant, at time.Duration) ([]Result, bool) {
	if at < MashDuration {
		return nil, false
	}
	entries := make([]Entry, 0, len(players))
	for _, p := range players {
		n := int64(m.Counts[p.Slot])
		entries = append(entries, Entry{Slot: p.Slot, Score: n, Badness: -n})
	}
	return Rank(entries), true
}
