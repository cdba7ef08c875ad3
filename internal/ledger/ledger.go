// Package ledger implements the seat ledger: the per-(train, travel
// date) authoritative record of seat occupancy.  Claim is the sole
// mutual-exclusion point for seat assignment; it is backed by a lock
// arena of per-key semaphores so that exactly one of any number of
// concurrent claims for the same (train, date, seat) succeeds.
// Occupancy is derived lazily from ACTIVE booking rows the first time
// a key is touched and kept current by Claim/Release afterwards.
package ledger

import (
	"context"
	"sync"

	"github.com/iliyamo/train-seat-reservation/internal/repository"
)

// Store is the slice of the booking repository the ledger needs: the
// active seat numbers for one train and travel date.
type Store interface {
	OccupiedSeats(ctx context.Context, trainID uint64, date string) ([]uint32, error)
}

type key struct {
	trainID uint64
	date    string
}

// entry holds the occupancy projection for one key.  sem is a
// one-slot semaphore instead of a sync.Mutex so that lock acquisition
// can honor the caller's context deadline.
type entry struct {
	sem      chan struct{}
	loaded   bool
	occupied *SeatSet
}

// Ledger tracks seat occupancy per (train, travel date).
type Ledger struct {
	store Store

	mu      sync.Mutex // guards entries map only
	entries map[key]*entry
}

// New returns a Ledger deriving occupancy from the given store.
func New(store Store) *Ledger {
	return &Ledger{store: store, entries: make(map[key]*entry)}
}

func (l *Ledger) entryFor(trainID uint64, date string) *entry {
	k := key{trainID: trainID, date: date}
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[k]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[k] = e
	}
	return e
}

// acquire takes the per-key lock or gives up when ctx expires.  A
// deadline hit maps to ErrTimeout so the engine can surface it as
// such; plain cancellation propagates unchanged.
func acquire(ctx context.Context, e *entry) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return repository.ErrTimeout
		}
		return ctx.Err()
	}
}

func release(e *entry) { <-e.sem }

// load populates the occupancy set from the store on first touch or
// after the capacity changed.  Must be called with the key locked.
func (l *Ledger) load(ctx context.Context, e *entry, trainID uint64, date string, totalSeats uint32) error {
	if e.loaded && e.occupied.Total() == totalSeats {
		return nil
	}
	seats, err := l.store.OccupiedSeats(ctx, trainID, date)
	if err != nil {
		return err
	}
	set := NewSeatSet(totalSeats)
	for _, s := range seats {
		set.Occupy(s)
	}
	e.occupied = set
	e.loaded = true
	return nil
}

// Claim atomically marks one seat occupied for the given train and
// travel date.  It fails with ErrOutOfRange when the seat lies
// outside 1..totalSeats and with ErrSeatTaken when the seat is
// already claimed.  No two concurrent claims for the same
// (train, date, seat) can both succeed.
func (l *Ledger) Claim(ctx context.Context, trainID uint64, date string, seat, totalSeats uint32) error {
	if seat < 1 || seat > totalSeats {
		return repository.ErrOutOfRange
	}
	e := l.entryFor(trainID, date)
	if err := acquire(ctx, e); err != nil {
		return err
	}
	defer release(e)
	if err := l.load(ctx, e, trainID, date, totalSeats); err != nil {
		return err
	}
	if e.occupied.Occupied(seat) {
		return repository.ErrSeatTaken
	}
	e.occupied.Occupy(seat)
	return nil
}

// Release reverses a claim.  It is the compensating action for
// persistence failures, timeouts and cancellations, so it must not
// fail on deadline: the lock is taken without a caller deadline.
// Releasing a seat that was never claimed is a no-op.
func (l *Ledger) Release(trainID uint64, date string, seat uint32) {
	e := l.entryFor(trainID, date)
	e.sem <- struct{}{}
	defer release(e)
	if e.loaded {
		e.occupied.Release(seat)
	}
}

// Availability returns the set of free seats for a train and travel
// date.  The returned SeatSet is a snapshot copy; mutating it does
// not affect the ledger.
func (l *Ledger) Availability(ctx context.Context, trainID uint64, date string, totalSeats uint32) (*SeatSet, error) {
	e := l.entryFor(trainID, date)
	if err := acquire(ctx, e); err != nil {
		return nil, err
	}
	defer release(e)
	if err := l.load(ctx, e, trainID, date, totalSeats); err != nil {
		return nil, err
	}
	snapshot := NewSeatSet(totalSeats)
	for seat := uint32(1); seat <= totalSeats; seat++ {
		if e.occupied.Occupied(seat) {
			snapshot.Occupy(seat)
		}
	}
	return snapshot, nil
}
