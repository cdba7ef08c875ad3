// Package engine implements the reservation engine: the component
// that orchestrates a booking request end to end with all-or-nothing
// semantics.  It validates the request, obtains a seat through the
// seat ledger (directly or via the resolver's auto-assign policy),
// persists the booking row in the same logical step and compensates
// with a ledger release whenever anything after a successful claim
// fails.  Callers bound the whole operation with a context deadline;
// a deadline hit surfaces as repository.ErrTimeout with no partial
// state left behind.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/train-seat-reservation/internal/ledger"
	"github.com/iliyamo/train-seat-reservation/internal/model"
	"github.com/iliyamo/train-seat-reservation/internal/repository"
)

// dateLayout is the wire and storage form of a travel date.
const dateLayout = "2006-01-02"

// UserDirectory supplies user existence and the admin flag.  The
// engine never mutates users.
type UserDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TrainCatalog supplies train existence and capacity.  Trains are
// read-only to the engine.
type TrainCatalog interface {
	GetByID(ctx context.Context, id uint64) (*model.Train, error)
}

// BookingStore is the durable, transactional persistence boundary for
// booking rows.  *repository.BookingRepo implements it against MySQL;
// tests substitute an in-memory fake.
type BookingStore interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	FindByID(ctx context.Context, id uint64) (*model.Booking, error)
	FindByToken(ctx context.Context, token string, userID, trainID uint64, date string) (*model.Booking, error)
	MarkCancelledTx(ctx context.Context, tx *sql.Tx, id uint64) error
	CountActive(ctx context.Context, trainID uint64, date string) (int, error)
}

// Engine wires the ledger, resolver and stores together.
type Engine struct {
	Users    UserDirectory
	Trains   TrainCatalog
	Store    BookingStore
	Ledger   *ledger.Ledger
	Resolver *Resolver
	// Clock supplies "now" for travel-date validation; nil means
	// time.Now.  Injected so tests can pin the current day.
	Clock func() time.Time
}

// New constructs an Engine with the default resolver and clock.
func New(users UserDirectory, trains TrainCatalog, store BookingStore, l *ledger.Ledger) *Engine {
	return &Engine{
		Users:    users,
		Trains:   trains,
		Store:    store,
		Ledger:   l,
		Resolver: &Resolver{},
		Clock:    time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// BookRequest is one reservation intent.  Seat 0 means "any seat";
// the resolver then picks one.  IdempotencyToken is optional: a
// repeated call with the same token and the same (user, train, date)
// returns the previously created booking instead of claiming again.
type BookRequest struct {
	UserID           uint64
	TrainID          uint64
	Date             string // travel date, "2006-01-02"
	Seat             uint32 // 0 = auto-assign
	IdempotencyToken string
}

// Book validates and commits a reservation.  On success the returned
// booking is ACTIVE and durably persisted.  Error kinds:
// ErrUserNotFound, ErrTrainNotFound, ErrInvalidDate, ErrOutOfRange,
// ErrTrainFull, ErrSeatTaken, ErrConstraintViolation,
// ErrPersistenceFailed, ErrTimeout.
func (e *Engine) Book(ctx context.Context, req BookRequest) (*model.Booking, error) {
	travel, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
	if err != nil {
		return nil, repository.ErrInvalidDate
	}
	today := e.now().UTC().Truncate(24 * time.Hour)
	if travel.Before(today) {
		return nil, repository.ErrInvalidDate
	}
	date := travel.Format(dateLayout)

	if _, err := e.Users.GetByID(ctx, req.UserID); err != nil {
		return nil, userLookupErr(err)
	}
	train, err := e.Trains.GetByID(ctx, req.TrainID)
	if err != nil {
		return nil, err
	}

	// Idempotent replay: a token seen before with the same
	// parameters short-circuits to the original booking.
	if req.IdempotencyToken != "" {
		prev, err := e.Store.FindByToken(ctx, req.IdempotencyToken, req.UserID, req.TrainID, date)
		if err == nil {
			return prev, nil
		}
		if !errors.Is(err, repository.ErrBookingNotFound) {
			return nil, err
		}
	}

	seat, err := e.claimSeat(ctx, train, date, req.Seat)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		UserID:      req.UserID,
		TrainID:     req.TrainID,
		SeatNumber:  seat,
		BookingDate: date,
		Status:      model.BookingActive,
	}
	if req.IdempotencyToken != "" {
		tok := req.IdempotencyToken
		booking.IdempotencyToken = &tok
	}
	err = e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		return e.Store.InsertTx(ctx, tx, booking)
	})
	if err != nil {
		// Compensating action: the claim must never outlive a
		// failed persistence attempt.
		e.Ledger.Release(train.ID, date, seat)
		switch {
		case errors.Is(err, repository.ErrConstraintViolation):
			return nil, err
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, repository.ErrTimeout):
			return nil, repository.ErrTimeout
		case errors.Is(err, context.Canceled):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %v", repository.ErrPersistenceFailed, err)
		}
	}
	return booking, nil
}

// claimSeat obtains exactly one claimed seat, either the requested
// one or an auto-assigned one.  Auto-assignment retries a bounded
// number of times when a selected seat is snatched between the
// availability snapshot and the claim.
func (e *Engine) claimSeat(ctx context.Context, train *model.Train, date string, seat uint32) (uint32, error) {
	if seat != 0 {
		if err := e.Ledger.Claim(ctx, train.ID, date, seat, train.TotalSeats); err != nil {
			return 0, err
		}
		return seat, nil
	}
	// Cheap rejection before touching the ledger: a train whose
	// active bookings already reach capacity cannot yield a seat.
	// The count may be stale; the ledger stays authoritative.
	if n, err := e.Store.CountActive(ctx, train.ID, date); err == nil && n >= int(train.TotalSeats) {
		return 0, repository.ErrTrainFull
	}
	attempts := e.Resolver.Attempts()
	for attempt := 0; attempt < attempts; attempt++ {
		free, err := e.Ledger.Availability(ctx, train.ID, date, train.TotalSeats)
		if err != nil {
			return 0, err
		}
		candidate, err := e.Resolver.SelectSeat(free.FreeSeats())
		if err != nil {
			return 0, err // ErrTrainFull
		}
		err = e.Ledger.Claim(ctx, train.ID, date, candidate, train.TotalSeats)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, repository.ErrSeatTaken) {
			return 0, err
		}
		// Lost the race for this seat; refresh the free set and
		// try again within the attempt bound.
	}
	return 0, repository.ErrSeatTaken
}

// Cancel marks a booking terminal and releases its seat.  Only the
// booking's owner or an admin may cancel.  Cancelling an already
// cancelled booking is a no-op so retried cancellations stay safe.
func (e *Engine) Cancel(ctx context.Context, bookingID, requesterID uint64) error {
	booking, err := e.Store.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	requester, err := e.Users.GetByID(ctx, requesterID)
	if err != nil {
		return userLookupErr(err)
	}
	if booking.UserID != requesterID && !requester.IsAdmin {
		return repository.ErrForbidden
	}
	if booking.Status == model.BookingCancelled {
		return nil
	}
	err = e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		return e.Store.MarkCancelledTx(ctx, tx, bookingID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			// A concurrent cancel won; the seat is already freed.
			return nil
		}
		return err
	}
	// Release only after the terminal state is durable.  Releasing
	// first could let a rival claim a seat the database still
	// considers booked.
	e.Ledger.Release(booking.TrainID, booking.BookingDate, booking.SeatNumber)
	return nil
}

// Availability returns the free seats for a train and travel date.
func (e *Engine) Availability(ctx context.Context, trainID uint64, date string) ([]uint32, error) {
	if _, err := time.ParseInLocation(dateLayout, date, time.UTC); err != nil {
		return nil, repository.ErrInvalidDate
	}
	train, err := e.Trains.GetByID(ctx, trainID)
	if err != nil {
		return nil, err
	}
	free, err := e.Ledger.Availability(ctx, trainID, date, train.TotalSeats)
	if err != nil {
		return nil, err
	}
	return free.FreeSeats(), nil
}

// userLookupErr maps a raw sql.ErrNoRows from a UserDirectory
// implementation to the domain sentinel.
func userLookupErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrUserNotFound
	}
	return err
}
