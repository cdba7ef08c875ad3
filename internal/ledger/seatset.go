package ledger

// SeatSet is a fixed-capacity bitset over seat numbers 1..Total.  It
// is the in-memory projection of which seats are occupied for one
// (train, travel date) pair.  SeatSet itself is not safe for
// concurrent use; the Ledger serializes access per key.
type SeatSet struct {
	total uint32
	bits  []uint64
}

// NewSeatSet returns an empty set for seats 1..total.
func NewSeatSet(total uint32) *SeatSet {
	return &SeatSet{total: total, bits: make([]uint64, (total+63)/64)}
}

// Total returns the seat capacity the set was built for.
func (s *SeatSet) Total() uint32 { return s.total }

// InRange reports whether seat lies within 1..total.
func (s *SeatSet) InRange(seat uint32) bool {
	return seat >= 1 && seat <= s.total
}

// Occupy marks a seat as taken.  Seats outside the range are ignored;
// range checks belong to the caller.
func (s *SeatSet) Occupy(seat uint32) {
	if s.InRange(seat) {
		s.bits[(seat-1)/64] |= 1 << ((seat - 1) % 64)
	}
}

// Release marks a seat as free again.
func (s *SeatSet) Release(seat uint32) {
	if s.InRange(seat) {
		s.bits[(seat-1)/64] &^= 1 << ((seat - 1) % 64)
	}
}

// Occupied reports whether the seat is currently taken.
func (s *SeatSet) Occupied(seat uint32) bool {
	if !s.InRange(seat) {
		return false
	}
	return s.bits[(seat-1)/64]&(1<<((seat-1)%64)) != 0
}

// FreeSeats returns the free seat numbers in ascending order.
func (s *SeatSet) FreeSeats() []uint32 {
	free := make([]uint32, 0, s.total)
	for seat := uint32(1); seat <= s.total; seat++ {
		if !s.Occupied(seat) {
			free = append(free, seat)
		}
	}
	return free
}

// FreeCount returns how many seats are still free.
func (s *SeatSet) FreeCount() int {
	n := 0
	for seat := uint32(1); seat <= s.total; seat++ {
		if !s.Occupied(seat) {
			n++
		}
	}
	return n
}
