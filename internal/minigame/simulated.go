package minigame

import (
	"math/rand/v2"
	"time"
)

// tier holds the simulated-player timing parameters for one difficulty.
// Real inputs never look at these.
type tier struct {
	mashMin, mashMax   time.Duration
	timingError        time.Duration
	reactMin, reactMax time.Duration
}

var tiers = map[Difficulty]tier{
	DifficultyEasy: {
		mashMin: 300 * time.Millisecond, mashMax: 500 * time.Millisecond,
		timingError: 1500 * time.Millisecond,
		reactMin:    500 * time.Millisecond, reactMax: 1000 * time.Millisecond,
	},
	DifficultyMedium: {
		mashMin: 150 * time.Millisecond, mashMax: 250 * time.Millisecond,
		timingError: 500 * time.Millisecond,
		reactMin:    300 * time.Millisecond, reactMax: 500 * time.Millisecond,
	},
	DifficultyHard: {
		mashMin: 80 * time.Millisecond, mashMax: 120 * time.Millisecond,
		timingError: 100 * time.Millisecond,
		reactMin:    180 * time.Millisecond, reactMax: 250 * time.Millisecond,
	},
}

func tierFor(d Difficulty) tier {
	if t, ok := tiers[d]; ok {
		return t
	}
	return tiers[DifficultyEasy]
}

// between draws uniformly from [lo, hi].
func between(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int64N(int64(hi-lo)+1))
}
