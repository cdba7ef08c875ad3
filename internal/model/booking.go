package model

import "time"

// Booking statuses.  A booking is never deleted; cancellation flips
// the status to CANCELLED so that audit history is preserved.
const (
	BookingActive    = "ACTIVE"
	BookingCancelled = "CANCELLED"
)

// Booking links one user to one seat on one train for a travel date.
// The travel date (BookingDate) is distinct from the creation
// timestamp.  At most one ACTIVE booking may exist per
// (train, seat, booking_date); the database enforces this through a
// unique key over a generated active flag.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who owns the booking.
//  TrainID          – train being booked.
//  SeatNumber       – seat within 1..train.TotalSeats.
//  BookingDate      – travel date in "2006-01-02" form (DATE column, UTC).
//  Status           – ACTIVE or CANCELLED.
//  IdempotencyToken – optional caller-supplied token used to dedupe retries.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp (set on cancellation).
type Booking struct {
	ID               uint64    // bookings.id
	UserID           uint64    // bookings.user_id
	TrainID          uint64    // bookings.train_id
	SeatNumber       uint32    // bookings.seat_number
	BookingDate      string    // bookings.booking_date
	Status           string    // bookings.status
	IdempotencyToken *string   // bookings.idempotency_token (nullable)
	CreatedAt        time.Time // bookings.created_at
	UpdatedAt        time.Time // bookings.updated_at
}
