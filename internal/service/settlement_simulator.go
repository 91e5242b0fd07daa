package service

import (
	"math/rand/v2"
	"sync"

	"bharatpay-gateway/internal/core/ports"
)

// Outcome thresholds for the simulated settlement draw on [0, 1):
// below successThreshold settles SUCCESS, below failureThreshold settles
// FAILED, the remainder stays PENDING and may be re-drawn on a later verify.
const (
	successThreshold = 0.8
	failureThreshold = 0.9
)

// SettlementSimulator implements ports.SettlementDecider with a probabilistic
// draw standing in for a real banking-network settlement check. A weak PRNG
// is fine here; the draw is a simulation, not a security boundary.
type SettlementSimulator struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewSettlementSimulator creates a simulator with its own PRNG.
func NewSettlementSimulator() *SettlementSimulator {
	return &SettlementSimulator{
		rand: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// NewSeededSettlementSimulator creates a deterministic simulator for tests.
func NewSeededSettlementSimulator(seed1, seed2 uint64) *SettlementSimulator {
	return &SettlementSimulator{
		rand: rand.New(rand.NewPCG(seed1, seed2)),
	}
}

// Decide draws one settlement outcome.
func (s *SettlementSimulator) Decide() ports.SettlementOutcome {
	s.mu.Lock()
	draw := s.rand.Float64()
	s.mu.Unlock()

	switch {
	case draw < successThreshold:
		return ports.SettlementSuccess
	case draw < failureThreshold:
		return ports.SettlementFailed
	default:
		return ports.SettlementPending
	}
}
