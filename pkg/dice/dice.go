// Package dice rolls Chronicles of Darkness d10 pools.
//
// A pool of N dice is N ten-sided dice; every face of 8 or more counts as
// one success. A pool reduced to zero or fewer dice becomes a single chance
// die, which succeeds only on a 10.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Thresholds of the d10 system.
const (
	Sides            = 10
	SuccessThreshold = 8
	ChanceThreshold  = 10
)

// Outcome is the result of one pool roll.
type Outcome struct {
	Pool      int   // requested pool size before the chance-die rule
	Dice      []int // faces rolled, in order
	Successes int
	Chance    bool // rolled as a chance die
}

// Roller rolls dice pools. Implementations must be safe for concurrent use.
type Roller interface {
	Roll(pool int) Outcome
}

// Count tallies successes for faces rolled on a regular pool.
func Count(faces []int) int {
	n := 0
	for _, f := range faces {
		if f >= SuccessThreshold {
			n++
		}
	}
	return n
}

// RandRoller is the game's single source of dice. It is deterministic for a
// given seed.
type RandRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller returns a roller seeded with seed.
func NewRoller(seed int64) *RandRoller {
	return &RandRoller{rng: rand.New(rand.NewSource(seed))}
}

// NewSecureRoller returns a roller seeded from crypto/rand.
func NewSecureRoller() (*RandRoller, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewRoller(seed), nil
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Roll rolls pool dice.
func (r *RandRoller) Roll(pool int) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Outcome{Pool: pool}
	if pool <= 0 {
		face := r.rng.Intn(Sides) + 1
		out.Dice = []int{face}
		out.Chance = true
		if face >= ChanceThreshold {
			out.Successes = 1
		}
		return out
	}
	out.Dice = make([]int, pool)
	for i := range out.Dice {
		out.Dice[i] = r.rng.Intn(Sides) + 1
	}
	out.Successes = Count(out.Dice)
	return out
}

// Fixed is a Roller that always reports the same number of successes.
// The faces it reports are consistent with that count.
type Fixed int

// Roll implements Roller.
func (f Fixed) Roll(pool int) Outcome {
	n := int(f)
	size := pool
	chance := pool <= 0
	if chance {
		size = 1
	}
	if n > size {
		n = size
	}
	faces := make([]int, size)
	for i := range faces {
		if i < n {
			faces[i] = Sides
		} else {
			faces[i] = 1
		}
	}
	return Outcome{Pool: pool, Dice: faces, Successes: n, Chance: chance}
}
