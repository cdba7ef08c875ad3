package ledger

import (
	"reflect"
	"testing"
)

func TestSeatSetOccupyRelease(t *testing.T) {
	s := NewSeatSet(5)
	if s.FreeCount() != 5 {
		t.Fatalf("expected 5 free seats, got %d", s.FreeCount())
	}
	s.Occupy(2)
	s.Occupy(5)
	if !s.Occupied(2) || !s.Occupied(5) {
		t.Error("expected seats 2 and 5 occupied")
	}
	if s.Occupied(1) {
		t.Error("seat 1 should be free")
	}
	want := []uint32{1, 3, 4}
	if got := s.FreeSeats(); !reflect.DeepEqual(got, want) {
		t.Errorf("free seats = %v, want %v", got, want)
	}
	s.Release(2)
	if s.Occupied(2) {
		t.Error("seat 2 should be free after release")
	}
	if s.FreeCount() != 4 {
		t.Errorf("expected 4 free seats, got %d", s.FreeCount())
	}
}

func TestSeatSetRange(t *testing.T) {
	s := NewSeatSet(3)
	if s.InRange(0) {
		t.Error("seat 0 must be out of range")
	}
	if s.InRange(4) {
		t.Error("seat 4 must be out of range")
	}
	if !s.InRange(1) || !s.InRange(3) {
		t.Error("seats 1 and 3 must be in range")
	}
	// Out-of-range operations are ignored rather than panicking.
	s.Occupy(0)
	s.Occupy(99)
	if s.FreeCount() != 3 {
		t.Errorf("out-of-range occupy changed the set: %d free", s.FreeCount())
	}
}

func TestSeatSetLargeCapacity(t *testing.T) {
	// Crosses the 64-bit word boundary.
	s := NewSeatSet(130)
	s.Occupy(64)
	s.Occupy(65)
	s.Occupy(130)
	if !s.Occupied(64) || !s.Occupied(65) || !s.Occupied(130) {
		t.Error("expected seats across word boundaries to be occupied")
	}
	if s.FreeCount() != 127 {
		t.Errorf("expected 127 free seats, got %d", s.FreeCount())
	}
}
