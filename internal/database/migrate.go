package database

import (
	"context"
	"database/sql"
	"log"
)

// Migrate creates the schema when it does not exist yet.  Statements
// are idempotent (CREATE TABLE IF NOT EXISTS) so the server can run
// them on every boot.
//
// The bookings table refines the naive UNIQUE(train_id, seat_number)
// constraint to be per travel date, and only for ACTIVE rows: the
// stored generated column active_flag is 1 for ACTIVE bookings and
// NULL for CANCELLED ones.  MySQL unique indexes ignore NULLs, so any
// number of cancelled rows may share a (train, seat, date) key while
// at most one ACTIVE row can hold it.  Cancellation therefore frees
// the seat without deleting audit history.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			username      VARCHAR(64)  NOT NULL,
			email         VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			is_admin      BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at    TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_users_username (username),
			UNIQUE KEY uq_users_email (email)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS trains (
			id           BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			train_number VARCHAR(32)  NOT NULL,
			source       VARCHAR(128) NOT NULL,
			destination  VARCHAR(128) NOT NULL,
			total_seats  INT UNSIGNED NOT NULL,
			created_at   TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_trains_number (train_number),
			KEY idx_trains_route (source, destination),
			CONSTRAINT chk_trains_seats CHECK (total_seats > 0)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id                BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			user_id           BIGINT UNSIGNED NOT NULL,
			train_id          BIGINT UNSIGNED NOT NULL,
			seat_number       INT UNSIGNED    NOT NULL,
			booking_date      DATE            NOT NULL,
			status            ENUM('ACTIVE','CANCELLED') NOT NULL DEFAULT 'ACTIVE',
			idempotency_token VARCHAR(128)    NULL,
			active_flag       TINYINT AS (IF(status = 'ACTIVE', 1, NULL)) STORED,
			created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_bookings_seat (train_id, seat_number, booking_date, active_flag),
			UNIQUE KEY uq_bookings_token (idempotency_token),
			KEY idx_bookings_user (user_id),
			KEY idx_bookings_train_date (train_id, booking_date, status),
			CONSTRAINT fk_bookings_user  FOREIGN KEY (user_id)  REFERENCES users (id),
			CONSTRAINT fk_bookings_train FOREIGN KEY (train_id) REFERENCES trains (id)
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	log.Println("database schema up to date")
	return nil
}
