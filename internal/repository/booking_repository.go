package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/train-seat-reservation/internal/model"
)

// BookingRepo provides data access to the bookings table.  Booking
// rows are append-only: cancellation updates the status to CANCELLED
// instead of deleting the row, which keeps an audit trail and frees
// the (train, seat, date) unique key through the generated
// active_flag column.  All timestamp fields are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// WithTx runs fn inside a transaction on this repository's database.
func (r *BookingRepo) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return WithTx(ctx, r.db, fn)
}

// InsertTx inserts a new ACTIVE booking within the scope of an
// existing transaction and populates the generated ID and timestamps
// on the provided record.  The caller must commit or roll back the
// transaction.  A duplicate (train, seat, date) key is reported as
// ErrConstraintViolation; the seat ledger should have prevented the
// collision, so hitting it means a race slipped past the lock.
func (r *BookingRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, train_id, seat_number, booking_date, status, idempotency_token)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.TrainID, b.SeatNumber, b.BookingDate, model.BookingActive, b.IdempotencyToken)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrConstraintViolation
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Status = model.BookingActive
	const sel = `SELECT created_at, updated_at FROM bookings WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// FindByID retrieves a booking by its primary key.
func (r *BookingRepo) FindByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT id, user_id, train_id, seat_number, booking_date, status, idempotency_token, created_at, updated_at
	           FROM bookings WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

// FindByToken retrieves the booking previously created with the given
// idempotency token.  The token match is additionally constrained to
// the same (user, train, date) so that a token reused with different
// parameters does not silently return an unrelated booking.
func (r *BookingRepo) FindByToken(ctx context.Context, token string, userID, trainID uint64, date string) (*model.Booking, error) {
	const q = `SELECT id, user_id, train_id, seat_number, booking_date, status, idempotency_token, created_at, updated_at
	           FROM bookings
	           WHERE idempotency_token = ? AND user_id = ? AND train_id = ? AND booking_date = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, q, token, userID, trainID, date))
}

// MarkCancelledTx flips an ACTIVE booking to CANCELLED within the
// provided transaction.  It returns ErrBookingNotFound when no ACTIVE
// row with the given ID exists, which also covers double-cancel races.
func (r *BookingRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, model.BookingCancelled, id, model.BookingActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// OccupiedSeats returns the seat numbers with an ACTIVE booking for
// the given train and travel date.  The seat ledger uses this to
// derive its occupancy view when a (train, date) key is first touched.
func (r *BookingRepo) OccupiedSeats(ctx context.Context, trainID uint64, date string) ([]uint32, error) {
	const q = `SELECT seat_number FROM bookings WHERE train_id = ? AND booking_date = ? AND status = 'ACTIVE' ORDER BY seat_number`
	rows, err := r.db.QueryContext(ctx, q, trainID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []uint32
	for rows.Next() {
		var s uint32
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// CountActive returns the number of ACTIVE bookings for a train and
// travel date.
func (r *BookingRepo) CountActive(ctx context.Context, trainID uint64, date string) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings WHERE train_id = ? AND booking_date = ? AND status = 'ACTIVE'`
	var n int
	err := r.db.QueryRowContext(ctx, q, trainID, date).Scan(&n)
	return n, err
}

// BookingDetail is a booking joined with its train information, the
// shape returned to customers when listing or inspecting bookings.
type BookingDetail struct {
	ID          uint64 `json:"id"`
	UserID      uint64 `json:"user_id"`
	TrainID     uint64 `json:"train_id"`
	TrainNumber string `json:"train_number"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	SeatNumber  uint32 `json:"seat_number"`
	BookingDate string `json:"booking_date"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// GetDetail returns a single booking joined with train info.  It does
// not check ownership; callers enforce the owner-or-admin rule.
func (r *BookingRepo) GetDetail(ctx context.Context, id uint64) (*BookingDetail, error) {
	const q = `SELECT b.id, b.user_id, b.train_id, t.train_number, t.source, t.destination,
	                  b.seat_number, b.booking_date, b.status, b.created_at
	           FROM bookings b
	           JOIN trains t ON t.id = b.train_id
	           WHERE b.id = ?`
	var d BookingDetail
	var travel, created time.Time
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.UserID, &d.TrainID, &d.TrainNumber, &d.Source, &d.Destination,
		&d.SeatNumber, &travel, &d.Status, &created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	d.BookingDate = travel.UTC().Format("2006-01-02")
	d.CreatedAt = created.UTC().Format(time.RFC3339)
	return &d, nil
}

// ListByUser returns all bookings for the given user joined with
// train details, newest first.  When no bookings exist, an empty
// slice is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingDetail, error) {
	const q = `SELECT b.id, b.user_id, b.train_id, t.train_number, t.source, t.destination,
	                  b.seat_number, b.booking_date, b.status, b.created_at
	           FROM bookings b
	           JOIN trains t ON t.id = b.train_id
	           WHERE b.user_id = ?
	           ORDER BY b.created_at DESC, b.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		var travel, created time.Time
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.TrainID, &d.TrainNumber, &d.Source, &d.Destination,
			&d.SeatNumber, &travel, &d.Status, &created,
		); err != nil {
			return nil, err
		}
		d.BookingDate = travel.UTC().Format("2006-01-02")
		d.CreatedAt = created.UTC().Format(time.RFC3339)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

func (r *BookingRepo) scanOne(row *sql.Row) (*model.Booking, error) {
	var b model.Booking
	var token sql.NullString
	var travel time.Time // DATE columns arrive as time.Time with parseTime=true
	err := row.Scan(&b.ID, &b.UserID, &b.TrainID, &b.SeatNumber, &travel, &b.Status, &token, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	b.BookingDate = travel.UTC().Format("2006-01-02")
	if token.Valid {
		t := token.String
		b.IdempotencyToken = &t
	}
	return &b, nil
}
