package model

import "time"

// Train describes a train that can be booked.  Trains are created by
// an external admin workflow and are read-only to the reservation
// core.  Seats are numbered 1..TotalSeats; there is no seat table,
// the ledger derives occupancy from booking rows.
//
// Fields:
//  ID          – primary key identifier.
//  TrainNumber – unique operator-assigned number (e.g. "12951").
//  Source      – departure station.
//  Destination – arrival station.
//  TotalSeats  – seat capacity; always positive.
//  CreatedAt   – creation timestamp.
type Train struct {
	ID          uint64    // trains.id
	TrainNumber string    // trains.train_number
	Source      string    // trains.source
	Destination string    // trains.destination
	TotalSeats  uint32    // trains.total_seats
	CreatedAt   time.Time // trains.created_at
}
