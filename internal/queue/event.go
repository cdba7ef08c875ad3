// Package queue defines message payloads exchanged over the message broker.
package queue

// Event types carried in BookingEvent.Type.
const (
	EventBookingCreated   = "booking.created"
	EventBookingCancelled = "booking.cancelled"
)

// BookingEvent is published when a booking is created or cancelled.
// It contains enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type BookingEvent struct {
	Type        string `json:"type"`
	BookingID   uint64 `json:"booking_id"`
	UserID      uint64 `json:"user_id"`
	TrainID     uint64 `json:"train_id"`
	TrainNumber string `json:"train_number"`
	SeatNumber  uint32 `json:"seat_number"`
	BookingDate string `json:"booking_date"`
	OccurredAt  string `json:"occurred_at"`
}
