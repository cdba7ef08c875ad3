package engine

import "github.com/iliyamo/train-seat-reservation/internal/repository"

// DefaultMaxAttempts bounds how many times an "any seat" booking
// re-selects and re-claims after losing a race.  Three attempts keeps
// contention loops short while absorbing ordinary races.
const DefaultMaxAttempts = 3

// Resolver encapsulates the seat auto-assignment policy, kept apart
// from the engine so the policy can evolve without touching the
// booking flow.
type Resolver struct {
	// MaxAttempts is the claim retry bound for auto-assignment.
	// Zero means DefaultMaxAttempts.
	MaxAttempts int
}

// Attempts returns the effective retry bound.
func (r *Resolver) Attempts() int {
	if r == nil || r.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return r.MaxAttempts
}

// SelectSeat picks a seat from the free set.  The policy is the
// lowest-numbered free seat, which is deterministic and easy to
// reason about in tests.  An empty free set yields ErrTrainFull.
func (r *Resolver) SelectSeat(free []uint32) (uint32, error) {
	if len(free) == 0 {
		return 0, repository.ErrTrainFull
	}
	lowest := free[0]
	for _, s := range free[1:] {
		if s < lowest {
			lowest = s
		}
	}
	return lowest, nil
}
