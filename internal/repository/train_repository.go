// Package repository contains data access logic for the train
// catalog.  Trains are created through the admin surface and are
// read-only to the reservation core: the engine only looks them up to
// validate existence and capacity.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/train-seat-reservation/internal/model"
)

// TrainRepo manages persistence for trains.
type TrainRepo struct {
	db *sql.DB
}

// NewTrainRepo constructs a TrainRepo with the given DB handle.
func NewTrainRepo(db *sql.DB) *TrainRepo {
	return &TrainRepo{db: db}
}

// Create inserts a new train and assigns the generated ID back to the
// struct.  The train number must be unique; collisions are reported
// as ErrTrainExists.
func (r *TrainRepo) Create(ctx context.Context, t *model.Train) error {
	const q = `INSERT INTO trains (train_number, source, destination, total_seats) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.TrainNumber, t.Source, t.Destination, t.TotalSeats)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrTrainExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	// Query the inserted row back to populate DB defaults.
	const sel = `SELECT id, train_number, source, destination, total_seats, created_at FROM trains WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, t.ID).Scan(
		&t.ID, &t.TrainNumber, &t.Source, &t.Destination, &t.TotalSeats, &t.CreatedAt,
	)
}

// GetByID retrieves a train by its ID.  It returns ErrTrainNotFound
// when there is no matching row.
func (r *TrainRepo) GetByID(ctx context.Context, id uint64) (*model.Train, error) {
	const q = `SELECT id, train_number, source, destination, total_seats, created_at FROM trains WHERE id = ?`
	var t model.Train
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.TrainNumber, &t.Source, &t.Destination, &t.TotalSeats, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTrainNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RouteAvailability is one row of a route search: a train on the
// requested route together with the number of free seats for the
// requested travel date.
type RouteAvailability struct {
	ID             uint64 `json:"id"`
	TrainNumber    string `json:"train_number"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	TotalSeats     uint32 `json:"total_seats"`
	AvailableSeats uint32 `json:"available_seats"`
}

// SearchByRoute lists trains between source and destination with
// their free seat counts for the given travel date.  Only ACTIVE
// bookings consume seats.  An empty result is not an error.
func (r *TrainRepo) SearchByRoute(ctx context.Context, source, destination, date string) ([]RouteAvailability, error) {
	const q = `SELECT t.id, t.train_number, t.source, t.destination, t.total_seats,
	                  (t.total_seats - COALESCE(COUNT(b.id), 0)) AS available_seats
	           FROM trains t
	           LEFT JOIN bookings b
	             ON b.train_id = t.id AND b.booking_date = ? AND b.status = 'ACTIVE'
	           WHERE t.source = ? AND t.destination = ?
	           GROUP BY t.id
	           ORDER BY t.train_number`
	rows, err := r.db.QueryContext(ctx, q, date, source, destination)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]RouteAvailability, 0)
	for rows.Next() {
		var a RouteAvailability
		if err := rows.Scan(&a.ID, &a.TrainNumber, &a.Source, &a.Destination, &a.TotalSeats, &a.AvailableSeats); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
