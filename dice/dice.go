package dice

import (
	"math/rand"
	"sync"
	"time"
)

// Roller produces die values for server-rolled participants.
type Roller interface {
	Roll(sides int) int
}

// RandomRoller is a Roller backed by math/rand. It is safe for concurrent use.
type RandomRoller struct {
	random *rand.Rand
	mutex  sync.Mutex
}

// Config for dice roller
type Config struct {
	// Optional seed for testing
	Seed int64
}

func New(cfg *Config) *RandomRoller {
	seed := time.Now().UnixNano()
	if cfg != nil && cfg.Seed != 0 {
		seed = cfg.Seed
	}
	return &RandomRoller{random: rand.New(rand.NewSource(seed))}
}

// Roll returns a value in [1, sides]. Sides below 1 roll a six-sided die.
func (r *RandomRoller) Roll(sides int) int {
	if sides < 1 {
		sides = 6
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.random.Intn(sides) + 1
}

// Fixed returns the same value every time.
type Fixed int

func (f Fixed) Roll(int) int {
	return int(f)
}
