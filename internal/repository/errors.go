// Package repository defines error types that are reused across the
// repositories and the reservation core built on top of them.  These
// sentinel values allow higher layers such as the reservation engine
// and handlers to distinguish between different failure scenarios
// with errors.Is.  For example, ErrSeatTaken indicates that a caller
// lost a race for a specific seat, while ErrConstraintViolation
// signals that the database rejected a write the seat ledger was
// supposed to have prevented.
package repository

import "errors"

// ErrUserNotFound indicates that no user row matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// ErrTrainNotFound indicates that a train was not located in the DB.
var ErrTrainNotFound = errors.New("train not found")

// ErrBookingNotFound indicates that no booking row matches the lookup.
var ErrBookingNotFound = errors.New("booking not found")

// ErrUserExists is returned when registration collides with an
// existing username or email.
var ErrUserExists = errors.New("username or email already exists")

// ErrTrainExists is returned when a train number is already taken.
var ErrTrainExists = errors.New("train number already exists")

// ErrInvalidDate is returned when a travel date cannot be parsed or
// lies in the past relative to the engine's clock.
var ErrInvalidDate = errors.New("invalid travel date")

// ErrOutOfRange is returned when a seat number falls outside the
// train's 1..total_seats capacity.
var ErrOutOfRange = errors.New("seat number out of range")

// ErrTrainFull is returned when no free seat remains for the
// requested train and travel date.
var ErrTrainFull = errors.New("train is full")

// ErrSeatTaken is returned when a claim loses the race for a specific
// seat: some other booking already occupies (train, seat, date).
var ErrSeatTaken = errors.New("seat already taken")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConstraintViolation is returned when the database unique key on
// (train_id, seat_number, booking_date) rejects an insert.  The seat
// ledger should make this unreachable; it exists as defense in depth.
var ErrConstraintViolation = errors.New("booking constraint violation")

// ErrPersistenceFailed wraps storage failures that occur after a seat
// was successfully claimed.  The claim is always released before this
// error propagates.
var ErrPersistenceFailed = errors.New("persistence failed")

// ErrTimeout is returned when a booking attempt exceeds the caller's
// deadline while waiting for the ledger lock or the repository
// transaction.  No partial state survives a timeout.
var ErrTimeout = errors.New("operation timed out")
